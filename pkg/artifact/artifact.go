// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact stores binary outputs and inputs of the gateway:
// generated images and documents uploaded for ingestion.
package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/bedrock-gw/pkg/provider"
)

// ErrNotFound is returned when an artifact does not exist.
var ErrNotFound = errors.New("artifact not found")

// Providers is the registry of artifact store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/bedrock-gw/pkg/artifact/memory"
//	import _ "github.com/leseb/bedrock-gw/pkg/artifact/filesystem"
//	import _ "github.com/leseb/bedrock-gw/pkg/artifact/s3"
var Providers = provider.NewRegistry[Store]("artifact_store")

// Kind tells generated images from ingested documents.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

// Artifact is a stored blob with its metadata.
type Artifact struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	MimeType  string    `json:"mime_type"`
	Bytes     int64     `json:"bytes"`
	SHA256    string    `json:"sha256"`
	Model     string    `json:"model,omitempty"` // model that produced it, for images
	Content   []byte    `json:"-"`               // populated for Put input; nil from Get
	CreatedAt time.Time `json:"created_at"`
}

// Store defines the interface for pluggable artifact storage backends.
type Store interface {
	Put(ctx context.Context, a *Artifact) error
	// Get returns metadata only; Content is nil.
	Get(ctx context.Context, id string) (*Artifact, error)
	Content(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	// List returns up to limit artifacts of kind (all kinds when empty),
	// newest first.
	List(ctx context.Context, kind Kind, limit int) ([]*Artifact, error)
	Close(ctx context.Context) error
}

// New builds an artifact with a fresh id, checksum and media type.
func New(name string, kind Kind, content []byte) *Artifact {
	sum := sha256.Sum256(content)
	return &Artifact{
		ID:        "art_" + uuid.NewString(),
		Name:      name,
		Kind:      kind,
		MimeType:  DetectMimeType(name, content),
		Bytes:     int64(len(content)),
		SHA256:    hex.EncodeToString(sum[:]),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// DetectMimeType guesses from the extension, then from the content.
func DetectMimeType(name string, content []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return http.DetectContentType(content)
}

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidID reports whether id is safe to use as a path or key segment.
func ValidID(id string) bool { return idRe.MatchString(id) }

// DefaultListLimit applies when List is called without a positive limit.
const DefaultListLimit = 50

// Newest sorts all by creation time, newest first, and keeps at most limit.
// Backends share it so listing order is identical everywhere.
func Newest(all []*Artifact, limit int) []*Artifact {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	slices.SortFunc(all, func(a, b *Artifact) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}
