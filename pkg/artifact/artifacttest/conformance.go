// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifacttest provides a shared conformance test suite for
// artifact.Store implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package artifacttest

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leseb/bedrock-gw/pkg/artifact"
)

// RunConformanceTests exercises a Store implementation against the shared
// contract. The newStore function is called once per sub-test to provide an
// isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) artifact.Store) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		a := artifact.New("cat.png", artifact.KindImage, []byte("\x89PNG fake"))
		a.Model = "amazon.titan-image-generator-v2:0"
		if err := store.Put(ctx, a); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Get(ctx, a.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ID != a.ID || got.Name != a.Name || got.Kind != a.Kind || got.MimeType != a.MimeType ||
			got.Bytes != a.Bytes || got.SHA256 != a.SHA256 || got.Model != a.Model {
			t.Errorf("Get returned unexpected metadata: %+v", got)
		}
		if !got.CreatedAt.Equal(a.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, a.CreatedAt)
		}
		if got.Content != nil {
			t.Errorf("expected Content to be nil from Get, got %d bytes", len(got.Content))
		}
	})

	t.Run("Content", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		body := []byte("first line\nsecond line\n")
		a := artifact.New("notes.txt", artifact.KindDocument, body)
		if err := store.Put(ctx, a); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := store.Content(ctx, a.ID)
		if err != nil {
			t.Fatalf("Content: %v", err)
		}
		if !bytes.Equal(got, body) {
			t.Errorf("Content = %q, want %q", got, body)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		if _, err := store.Get(ctx, "art_missing"); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Get: expected ErrNotFound, got %v", err)
		}
		if _, err := store.Content(ctx, "art_missing"); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Content: expected ErrNotFound, got %v", err)
		}
		if err := store.Delete(ctx, "art_missing"); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("RejectsUnsafeID", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		a := artifact.New("x.txt", artifact.KindDocument, []byte("x"))
		a.ID = "../escape"
		if err := store.Put(ctx, a); err == nil {
			t.Fatal("expected Put to reject a path-like id")
		}
		if _, err := store.Get(ctx, "../escape"); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("Get: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		a := artifact.New("gone.txt", artifact.KindDocument, []byte("bye"))
		if err := store.Put(ctx, a); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, a.ID); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, a.ID); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := store.Content(ctx, a.ID); !errors.Is(err, artifact.ErrNotFound) {
			t.Errorf("expected ErrNotFound for content after delete, got %v", err)
		}
	})

	t.Run("ListNewestFirstByKind", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Second)
		var ids []string
		for i, kind := range []artifact.Kind{artifact.KindImage, artifact.KindDocument, artifact.KindImage, artifact.KindImage} {
			a := artifact.New("item", kind, []byte{byte(i)})
			a.CreatedAt = base.Add(time.Duration(i) * time.Second)
			if err := store.Put(ctx, a); err != nil {
				t.Fatalf("Put %d: %v", i, err)
			}
			ids = append(ids, a.ID)
		}

		images, err := store.List(ctx, artifact.KindImage, 10)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		want := []string{ids[3], ids[2], ids[0]}
		if len(images) != len(want) {
			t.Fatalf("expected %d images, got %d", len(want), len(images))
		}
		for i, a := range images {
			if a.ID != want[i] {
				t.Errorf("images[%d] = %s, want %s", i, a.ID, want[i])
			}
			if a.Content != nil {
				t.Errorf("images[%d] carries content", i)
			}
		}

		limited, err := store.List(ctx, "", 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(limited) != 2 || limited[0].ID != ids[3] || limited[1].ID != ids[2] {
			t.Errorf("unexpected limited listing: %+v", limited)
		}
	})
}
