// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package s3 stores artifacts in an S3 bucket (or MinIO). Each artifact is a
// single object whose descriptive fields travel as user metadata, so an
// artifact is either fully written or absent.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/leseb/bedrock-gw/pkg/artifact"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

func init() {
	artifact.Providers.Register("s3", func(ctx context.Context, params provider.Params) (artifact.Store, error) {
		return New(ctx, Options{
			Bucket:          params.Get("bucket"),
			Region:          params.Get("region"),
			Prefix:          params.Get("prefix"),
			Endpoint:        params.Get("endpoint"),
			AccessKeyID:     params.Get("access_key_id"),
			SecretAccessKey: params.Get("secret_access_key"),
		})
	})
}

var _ artifact.Store = (*Store)(nil)

// User metadata keys. S3 lower-cases them on the way back.
const (
	metaName    = "name"
	metaKind    = "kind"
	metaModel   = "model"
	metaSHA256  = "sha256"
	metaCreated = "created-at"
)

// headConcurrency bounds the HeadObject calls issued by List.
const headConcurrency = 8

// Options configures the S3 backend.
type Options struct {
	Bucket   string // required
	Region   string
	Prefix   string // key prefix, e.g. "artifacts/"
	Endpoint string // custom endpoint; switches to path-style addressing

	// Static credentials. The default AWS chain is used when empty.
	AccessKeyID     string
	SecretAccessKey string
}

// Store keeps artifacts under <prefix><artifact_id>.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New creates an S3-backed Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 artifact store: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

func (s *Store) key(id string) string { return s.prefix + id }

func (s *Store) Put(ctx context.Context, a *artifact.Artifact) error {
	if !artifact.ValidID(a.ID) {
		return fmt.Errorf("invalid artifact id %q", a.ID)
	}
	meta := map[string]string{
		metaName:    url.QueryEscape(a.Name),
		metaKind:    string(a.Kind),
		metaSHA256:  a.SHA256,
		metaCreated: a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.Model != "" {
		meta[metaModel] = a.Model
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(a.ID)),
		Body:          bytes.NewReader(a.Content),
		ContentLength: aws.Int64(int64(len(a.Content))),
		ContentType:   aws.String(a.MimeType),
		Metadata:      meta,
	})
	if err != nil {
		return fmt.Errorf("put artifact %s: %w", a.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*artifact.Artifact, error) {
	if !artifact.ValidID(id) {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s.wrap(err, id, "head")
	}
	return fromHead(id, out)
}

func (s *Store) Content(ctx context.Context, id string) ([]byte, error) {
	if !artifact.ValidID(id) {
		return nil, fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return nil, s.wrap(err, id, "get")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", id, err)
	}
	return data, nil
}

// Delete checks existence first since DeleteObject succeeds on missing keys.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return s.wrap(err, id, "delete")
	}
	return nil
}

// List reads every key under the prefix and heads them concurrently, since
// kind and creation time live in user metadata.
func (s *Store) List(ctx context.Context, kind artifact.Kind, limit int) ([]*artifact.Artifact, error) {
	var ids []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list artifacts: %w", err)
		}
		for _, obj := range page.Contents {
			id := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if artifact.ValidID(id) {
				ids = append(ids, id)
			}
		}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		all      []*artifact.Artifact
		firstErr error
	)
	sem := make(chan struct{}, headConcurrency)
	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			a, err := s.Get(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, artifact.ErrNotFound):
				// deleted between list and head
			case err != nil:
				if firstErr == nil {
					firstErr = err
				}
			case kind == "" || a.Kind == kind:
				all = append(all, a)
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return artifact.Newest(all, limit), nil
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) wrap(err error, id, op string) error {
	if isNotFound(err) {
		return fmt.Errorf("artifact %s: %w", id, artifact.ErrNotFound)
	}
	return fmt.Errorf("%s artifact %s: %w", op, id, err)
}

func fromHead(id string, out *s3.HeadObjectOutput) (*artifact.Artifact, error) {
	meta := out.Metadata
	created, err := time.Parse(time.RFC3339Nano, meta[metaCreated])
	if err != nil {
		return nil, fmt.Errorf("artifact %s: bad %s metadata: %w", id, metaCreated, err)
	}
	name, err := url.QueryUnescape(meta[metaName])
	if err != nil {
		return nil, fmt.Errorf("artifact %s: bad %s metadata: %w", id, metaName, err)
	}
	return &artifact.Artifact{
		ID:        id,
		Name:      name,
		Kind:      artifact.Kind(meta[metaKind]),
		MimeType:  aws.ToString(out.ContentType),
		Bytes:     aws.ToInt64(out.ContentLength),
		SHA256:    meta[metaSHA256],
		Model:     meta[metaModel],
		CreatedAt: created,
	}, nil
}

// isNotFound covers GetObject (NoSuchKey) and HeadObject, which has no body
// and surfaces a bare NotFound code.
func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	if errors.As(err, &nsk) || errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
