// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/artifact/artifacttest"
	"github.com/leseb/bedrock-gw/pkg/artifact/filesystem"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

func TestFilesystemConformance(t *testing.T) {
	artifacttest.RunConformanceTests(t, func(t *testing.T) artifact.Store {
		store, err := filesystem.New(t.TempDir())
		if err != nil {
			t.Fatalf("filesystem.New: %v", err)
		}
		return store
	})
}

func TestFilesystemLayout(t *testing.T) {
	dir := t.TempDir()
	store, err := artifact.Providers.New(context.Background(), "filesystem", provider.Params{"base_dir": dir})
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}

	a := artifact.New("doc.md", artifact.KindDocument, []byte("# title"))
	if err := store.Put(context.Background(), a); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for _, name := range []string{"content", "metadata.json"} {
		if _, err := os.Stat(filepath.Join(dir, a.ID, name)); err != nil {
			t.Errorf("expected %s on disk: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, a.ID, "content.tmp")); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestFilesystemSkipsForeignDirectories(t *testing.T) {
	dir := t.TempDir()
	store, err := filesystem.New(dir)
	if err != nil {
		t.Fatalf("filesystem.New: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "lost+found"), 0o755); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty listing, got %d", len(list))
	}
}

func TestFilesystemRequiresBaseDir(t *testing.T) {
	if _, err := artifact.Providers.New(context.Background(), "filesystem", nil); err == nil {
		t.Fatal("expected error without base_dir")
	}
}
