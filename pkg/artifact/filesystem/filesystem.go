// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

func init() {
	artifact.Providers.Register("filesystem", func(_ context.Context, params provider.Params) (artifact.Store, error) {
		dir, err := params.Required("artifact_store", "base_dir")
		if err != nil {
			return nil, err
		}
		return New(dir)
	})
}

// compile-time check
var _ artifact.Store = (*Store)(nil)

const (
	contentFile  = "content"
	metadataFile = "metadata.json"
)

// Store keeps artifacts on the local filesystem.
//
// Layout:
//
//	<baseDir>/<artifact_id>/content
//	<baseDir>/<artifact_id>/metadata.json
type Store struct {
	baseDir string
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Put writes content then metadata, each via temp file and rename, so a
// reader never sees metadata for a half-written blob.
func (s *Store) Put(_ context.Context, a *artifact.Artifact) error {
	if !artifact.ValidID(a.ID) {
		return fmt.Errorf("invalid artifact id %q", a.ID)
	}
	dir := filepath.Join(s.baseDir, a.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	if err := writeAtomic(filepath.Join(dir, contentFile), a.Content); err != nil {
		return fmt.Errorf("write content: %w", err)
	}

	meta := *a
	meta.Content = nil
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, metadataFile), metaBytes); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*artifact.Artifact, error) {
	return s.readMetadata(id)
}

func (s *Store) Content(_ context.Context, id string) ([]byte, error) {
	if !artifact.ValidID(id) {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, contentFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
		}
		return nil, fmt.Errorf("read content: %w", err)
	}
	return data, nil
}

// Delete removes the artifact directory and all its contents.
func (s *Store) Delete(_ context.Context, id string) error {
	if !artifact.ValidID(id) {
		return fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	dir := filepath.Join(s.baseDir, id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
		}
		return fmt.Errorf("stat artifact dir: %w", err)
	}
	return os.RemoveAll(dir)
}

func (s *Store) List(_ context.Context, kind artifact.Kind, limit int) ([]*artifact.Artifact, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base dir: %w", err)
	}

	var all []*artifact.Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		a, err := s.readMetadata(entry.Name())
		if err != nil {
			continue // half-written or foreign directory
		}
		if kind != "" && a.Kind != kind {
			continue
		}
		all = append(all, a)
	}
	return artifact.Newest(all, limit), nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) readMetadata(id string) (*artifact.Artifact, error) {
	if !artifact.ValidID(id) {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
		}
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var a artifact.Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal metadata for %s: %w", id, err)
	}
	return &a, nil
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
