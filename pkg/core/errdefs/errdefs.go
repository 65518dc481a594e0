// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package errdefs defines the closed error taxonomy shared by every
// component of the gateway.
//
// Each failure is reported as an *Error carrying one of five kinds. Callers
// branch on the kind with errors.Is against the package sentinels:
//
//	if errors.Is(err, errdefs.ErrStorage) { ... }
//
// Backends that declare an operation without implementing it return an
// error that additionally matches ErrUnsupported, so "not supported" can be
// told apart from "failed".
package errdefs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an error.
type Kind string

const (
	// KindConfig is missing or invalid setup, e.g. an unresolvable model id.
	KindConfig Kind = "config"
	// KindRequest is a local payload-construction violation. Never retried.
	KindRequest Kind = "request"
	// KindResponse is a parse or framing failure against the provider schema.
	KindResponse Kind = "response"
	// KindTransport is a network or service failure reported by the transport.
	KindTransport Kind = "transport"
	// KindStorage is a vector-store failure: connectivity, dimension
	// mismatch or constraint violation.
	KindStorage Kind = "storage"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrConfig    = &Error{Kind: KindConfig}
	ErrRequest   = &Error{Kind: KindRequest}
	ErrResponse  = &Error{Kind: KindResponse}
	ErrTransport = &Error{Kind: KindTransport}
	ErrStorage   = &Error{Kind: KindStorage}
)

// ErrUnsupported marks an operation a backend declares but does not implement.
var ErrUnsupported = errors.New("unsupported operation")

// Error is the single normalized error value returned by public operations.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	// Retryable is set on transport errors the caller may retry with backoff.
	Retryable bool
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Configf returns a KindConfig error.
func Configf(format string, args ...any) error { return newf(KindConfig, format, args...) }

// Requestf returns a KindRequest error.
func Requestf(format string, args ...any) error { return newf(KindRequest, format, args...) }

// Responsef returns a KindResponse error.
func Responsef(format string, args ...any) error { return newf(KindResponse, format, args...) }

// Transportf returns a KindTransport error.
func Transportf(format string, args ...any) error { return newf(KindTransport, format, args...) }

// Storagef returns a KindStorage error.
func Storagef(format string, args ...any) error { return newf(KindStorage, format, args...) }

// Wrap classifies err under kind. An err that already carries a kind is
// returned with its original kind preserved and msg prepended.
func Wrap(kind Kind, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	var e *Error
	if errors.As(err, &e) {
		return &Error{Kind: e.Kind, Msg: msg, Err: err, Retryable: e.Retryable}
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Unsupported reports that backend does not implement op.
func Unsupported(backend, op string) error {
	return &Error{Kind: KindStorage, Msg: backend + ": " + op, Err: ErrUnsupported}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether err is a transport error flagged as retryable.
func IsRetryable(err error) bool {
	var e *Error
	for errors.As(err, &e) {
		if e.Retryable {
			return true
		}
		err = e.Err
		if err == nil {
			return false
		}
	}
	return false
}
