// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package s3_test

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/artifact/artifacttest"
	arts3 "github.com/leseb/bedrock-gw/pkg/artifact/s3"
)

type object struct {
	body   []byte
	header http.Header
}

// fakeS3 serves the path-style object calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object // "bucket/key"
}

type listResult struct {
	XMLName     xml.Name `xml:"ListBucketResult"`
	Name        string   `xml:"Name"`
	Prefix      string   `xml:"Prefix"`
	KeyCount    int      `xml:"KeyCount"`
	IsTruncated bool     `xml:"IsTruncated"`
	Contents    []struct {
		Key  string `xml:"Key"`
		Size int    `xml:"Size"`
	} `xml:"Contents"`
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	path := bucket + "/" + key

	switch {
	case r.Method == http.MethodGet && key == "" && r.URL.Query().Get("list-type") == "2":
		prefix := r.URL.Query().Get("prefix")
		res := listResult{Name: bucket, Prefix: prefix}
		var keys []string
		for p := range f.objects {
			if k, ok := strings.CutPrefix(p, bucket+"/"); ok && strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			res.Contents = append(res.Contents, struct {
				Key  string `xml:"Key"`
				Size int    `xml:"Size"`
			}{k, len(f.objects[bucket+"/"+k].body)})
		}
		res.KeyCount = len(keys)
		w.Header().Set("Content-Type", "application/xml")
		_ = xml.NewEncoder(w).Encode(res)

	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		h := http.Header{}
		h.Set("Content-Type", r.Header.Get("Content-Type"))
		for name, v := range r.Header {
			if strings.HasPrefix(name, "X-Amz-Meta-") {
				h[name] = v
			}
		}
		f.objects[path] = object{body: body, header: h}
		w.Header().Set("ETag", `"etag"`)

	case r.Method == http.MethodHead || r.Method == http.MethodGet:
		obj, ok := f.objects[path]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		for name, v := range obj.header {
			w.Header()[name] = v
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(obj.body)))
		if r.Method == http.MethodGet {
			_, _ = w.Write(obj.body)
		}

	case r.Method == http.MethodDelete:
		delete(f.objects, path)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newFakeStore(t *testing.T, srv *httptest.Server) artifact.Store {
	t.Helper()
	store, err := arts3.New(context.Background(), arts3.Options{
		Bucket:          "artifacts",
		Region:          "us-east-1",
		Prefix:          strings.ReplaceAll(t.Name(), "/", "-") + "/",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	if err != nil {
		t.Fatalf("s3.New: %v", err)
	}
	return store
}

func TestS3ConformanceFake(t *testing.T) {
	srv := httptest.NewServer(&fakeS3{objects: map[string]object{}})
	defer srv.Close()

	artifacttest.RunConformanceTests(t, func(t *testing.T) artifact.Store {
		return newFakeStore(t, srv)
	})
}

func TestS3KeepsNonASCIINames(t *testing.T) {
	srv := httptest.NewServer(&fakeS3{objects: map[string]object{}})
	defer srv.Close()
	store := newFakeStore(t, srv)
	ctx := context.Background()

	a := artifact.New("résumé 2024.pdf", artifact.KindDocument, []byte("%PDF-1.4"))
	if err := store.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != a.Name {
		t.Errorf("Name = %q, want %q", got.Name, a.Name)
	}
	if got.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q", got.MimeType)
	}
}

func TestS3Conformance(t *testing.T) {
	bucket := os.Getenv("ARTIFACT_S3_BUCKET")
	endpoint := os.Getenv("ARTIFACT_S3_ENDPOINT")
	if bucket == "" || endpoint == "" {
		t.Skip("Skipping S3 conformance tests: ARTIFACT_S3_BUCKET and ARTIFACT_S3_ENDPOINT must be set (e.g. with MinIO)")
	}

	region := os.Getenv("ARTIFACT_S3_REGION")
	if region == "" {
		region = "us-east-1"
	}

	artifacttest.RunConformanceTests(t, func(t *testing.T) artifact.Store {
		store, err := arts3.New(context.Background(), arts3.Options{
			Bucket:   bucket,
			Region:   region,
			Prefix:   "test-" + strings.ReplaceAll(t.Name(), "/", "-") + "/",
			Endpoint: endpoint,
		})
		if err != nil {
			t.Fatalf("s3.New: %v", err)
		}
		return store
	})
}

func TestS3RequiresBucket(t *testing.T) {
	if _, err := arts3.New(context.Background(), arts3.Options{}); err == nil {
		t.Fatal("expected error without bucket")
	}
}
