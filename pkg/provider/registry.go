// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider is a generic factory registry for pluggable backends.
//
// Subsystems (transports, vector stores, artifact stores) each own a typed
// Registry and implementation packages register themselves from init(), in
// the style of database/sql drivers: blank-import the package, then build
// the backend by name from configuration.
package provider

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

// Params is the flat key/value configuration handed to a factory.
type Params map[string]string

// Get returns the trimmed value of key.
func (p Params) Get(key string) string {
	return strings.TrimSpace(p[key])
}

// Required returns the value of key or a config error naming it.
func (p Params) Required(subsystem, key string) (string, error) {
	v := p.Get(key)
	if v == "" {
		return "", errdefs.Configf("%s: %s is required", subsystem, key)
	}
	return v, nil
}

// Int returns key parsed as an integer, or def when it is unset.
func (p Params) Int(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errdefs.Configf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// Bool returns key parsed as a boolean, or def when it is unset.
func (p Params) Bool(key string, def bool) (bool, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errdefs.Configf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}

// Factory builds one backend instance from its parameters.
type Factory[T any] func(ctx context.Context, params Params) (T, error)

// Registry maps backend names to factories for interface T. It is safe for
// concurrent use.
type Registry[T any] struct {
	subsystem string
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

// NewRegistry returns an empty registry. subsystem names it in errors, e.g.
// "vector_store".
func NewRegistry[T any](subsystem string) *Registry[T] {
	return &Registry[T]{
		subsystem: subsystem,
		factories: make(map[string]Factory[T]),
	}
}

// Register adds a named factory. Registering a name twice panics so that
// conflicting init() registrations surface at startup.
func (r *Registry[T]) Register(name string, f Factory[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		panic("provider: " + r.subsystem + " backend " + strconv.Quote(name) + " already registered")
	}
	r.factories[name] = f
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// New builds the backend registered as name. An unknown name is a config
// error listing the available backends.
func (r *Registry[T]) New(ctx context.Context, name string, params Params) (T, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, errdefs.Configf("unknown %s backend %q (available: %v)", r.subsystem, name, r.Available())
	}
	if params == nil {
		params = Params{}
	}
	return f(ctx, params)
}

// Available returns the registered names in sorted order.
func (r *Registry[T]) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
