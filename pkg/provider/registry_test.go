// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
)

type fakeBackend struct{ dsn string }

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	r.Register("alpha", func(_ context.Context, params Params) (*fakeBackend, error) {
		return &fakeBackend{dsn: params.Get("dsn")}, nil
	})

	b, err := r.New(context.Background(), "alpha", Params{"dsn": "  postgres://x  "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.dsn != "postgres://x" {
		t.Errorf("expected trimmed dsn, got %q", b.dsn)
	}
	if !r.Has("alpha") || r.Has("beta") {
		t.Errorf("Has() disagrees with registrations")
	}
}

func TestRegistry_NilParams(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	r.Register("alpha", func(_ context.Context, params Params) (*fakeBackend, error) {
		if params == nil {
			t.Fatal("factory received nil params")
		}
		return &fakeBackend{}, nil
	})
	if _, err := r.New(context.Background(), "alpha", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegistry_UnknownBackend(t *testing.T) {
	r := NewRegistry[*fakeBackend]("vector_store")
	r.Register("memory", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	_, err := r.New(context.Background(), "cassandra", nil)
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if !errors.Is(err, errdefs.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
	want := `config error: unknown vector_store backend "cassandra" (available: [memory])`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestRegistry_Available(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	for _, name := range []string{"qdrant", "memory", "postgres"} {
		r.Register(name, func(_ context.Context, _ Params) (*fakeBackend, error) {
			return &fakeBackend{}, nil
		})
	}

	avail := r.Available()
	if len(avail) != 3 || avail[0] != "memory" || avail[1] != "postgres" || avail[2] != "qdrant" {
		t.Errorf("Available() = %v, want [memory postgres qdrant]", avail)
	}
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := NewRegistry[*fakeBackend]("test")
	r.Register("dup", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	r.Register("dup", func(_ context.Context, _ Params) (*fakeBackend, error) {
		return &fakeBackend{}, nil
	})
}

func TestParams(t *testing.T) {
	p := Params{"port": "5432", "tls": "true", "bad": "x"}

	if n, err := p.Int("port", 0); err != nil || n != 5432 {
		t.Errorf("Int(port) = %d, %v", n, err)
	}
	if n, err := p.Int("missing", 7); err != nil || n != 7 {
		t.Errorf("Int(missing) = %d, %v", n, err)
	}
	if _, err := p.Int("bad", 0); !errors.Is(err, errdefs.ErrConfig) {
		t.Errorf("Int(bad) error = %v, want config error", err)
	}
	if b, err := p.Bool("tls", false); err != nil || !b {
		t.Errorf("Bool(tls) = %v, %v", b, err)
	}
	if _, err := p.Bool("bad", false); !errors.Is(err, errdefs.ErrConfig) {
		t.Errorf("Bool(bad) error = %v, want config error", err)
	}
	if _, err := p.Required("postgres", "host"); !errors.Is(err, errdefs.ErrConfig) {
		t.Errorf("Required(host) error = %v, want config error", err)
	}
}
