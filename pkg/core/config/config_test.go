// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.Equal(t, EmbeddingBedrock, cfg.Embedding.Provider)
	assert.Equal(t, profile.DefaultEmbeddingModel, cfg.Embedding.Model)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.Equal(t, profile.DefaultTextModel, cfg.Bedrock.TextModel)
	assert.Equal(t, "us-east-1", cfg.Bedrock.Region)
	assert.Equal(t, 800, cfg.RAG.ChunkSize)
	assert.Equal(t, 200, cfg.RAG.ChunkOverlap)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  timeout: 30s
logging:
  level: debug
  format: json
embedding:
  model: amazon.titan-embed-text-v2:0
vector_store:
  type: sqlite
  sqlite:
    path: /tmp/vectors.db
artifacts:
  type: filesystem
  base_dir: /tmp/artifacts
rag:
  context_limit: 3
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 1024, cfg.Embedding.Dimensions)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "/tmp/vectors.db", cfg.VectorStore.Params().Get("path"))
	assert.Equal(t, "/tmp/artifacts", cfg.Artifacts.Params().Get("base_dir"))
	assert.Equal(t, 3, cfg.RAG.ContextLimit)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorIs(t, err, errdefs.ErrConfig)

	_, err = Load(writeConfig(t, "server: [not, a, map]"), nil)
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := Load("", MapLookup(map[string]string{
		"PORT":              "3000",
		"AWS_REGION":        "eu-west-1",
		"BEDROCK_ENDPOINT":  "http://localhost:4566",
		"USE_PSQL":          "true",
		"POSTGRES_HOST":     "db",
		"POSTGRES_USERNAME": "app",
		"POSTGRES_PASSWORD": "p@ss",
		"POSTGRES_DATABASE": "vectors",
		"REDIS_ADDR":        "redis:6379",
	}))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "eu-west-1", cfg.Bedrock.Region)
	assert.Equal(t, "http://localhost:4566", cfg.Bedrock.Endpoint)
	assert.Equal(t, "postgres", cfg.VectorStore.Type)
	assert.Equal(t, "postgres://app:p%40ss@db:5432/vectors?sslmode=disable", cfg.VectorStore.Params().Get("dsn"))
	assert.Equal(t, "redis", cfg.Cache.Type)
	assert.Equal(t, "redis:6379", cfg.Cache.Redis.Address)
	assert.Equal(t, 24*time.Hour, cfg.Cache.Redis.TTL)
}

func TestEnvDatabaseURLWins(t *testing.T) {
	cfg, err := Load("", MapLookup(map[string]string{
		"USE_PSQL":      "true",
		"DATABASE_URL":  "postgres://u:p@h/db",
		"POSTGRES_HOST": "ignored",
	}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@h/db", cfg.VectorStore.Postgres.ConnString())
}

func TestEnvMultipleBackendsRejected(t *testing.T) {
	_, err := Load("", MapLookup(map[string]string{
		"USE_PSQL":     "true",
		"USE_PINECONE": "true",
		"DATABASE_URL": "postgres://h/db",
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, errdefs.ErrConfig)
	assert.Contains(t, err.Error(), "postgres, pinecone")
}

func TestEnvFlagMustBeTrue(t *testing.T) {
	cfg, err := Load("", MapLookup(map[string]string{"USE_UPSTASH": "1"}))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
}

func TestEnvAddressSelectsBackend(t *testing.T) {
	cfg, err := Load("", MapLookup(map[string]string{"MILVUS_ADDRESS": "milvus:19530"}))
	require.NoError(t, err)
	assert.Equal(t, "milvus", cfg.VectorStore.Type)
	assert.Equal(t, "milvus:19530", cfg.VectorStore.Params().Get("address"))

	cfg, err = Load("", MapLookup(map[string]string{"QDRANT_HOST": "qdrant"}))
	require.NoError(t, err)
	assert.Equal(t, "qdrant", cfg.VectorStore.Type)
	assert.Equal(t, "false", cfg.VectorStore.Params().Get("tls"))

	cfg, err = Load("", MapLookup(map[string]string{"SQLITE_PATH": "/var/lib/gw/vectors.db"}))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "/var/lib/gw/vectors.db", cfg.VectorStore.Params().Get("path"))
}

func TestEnvEmbeddingEndpointSelectsOpenAI(t *testing.T) {
	cfg, err := Load("", MapLookup(map[string]string{
		"EMBEDDING_ENDPOINT":   "http://localhost:11434/v1",
		"EMBEDDING_MODEL":      "nomic-embed-text",
		"EMBEDDING_DIMENSIONS": "768",
	}))
	require.NoError(t, err)
	assert.Equal(t, EmbeddingOpenAI, cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
}

func TestEnvInvalidInteger(t *testing.T) {
	_, err := Load("", MapLookup(map[string]string{"PORT": "eighty"}))
	assert.ErrorIs(t, err, errdefs.ErrConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"pinecone without key", func(c *Config) { c.VectorStore.Type = "pinecone" }, "pinecone"},
		{"upstash without token", func(c *Config) { c.VectorStore.Type = "upstash"; c.VectorStore.Upstash.URL = "https://x" }, "upstash"},
		{"postgres without target", func(c *Config) { c.VectorStore.Type = "postgres" }, "postgres"},
		{"unknown backend", func(c *Config) { c.VectorStore.Type = "faiss" }, "faiss"},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = -1 }, "dimensions"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"overlap too large", func(c *Config) { c.RAG.ChunkOverlap = 900 }, "chunk_overlap"},
		{"half static credentials", func(c *Config) { c.Bedrock.AccessKeyID = "AKIA" }, "secret_access_key"},
		{"redis without address", func(c *Config) { c.Cache.Type = "redis" }, "cache.redis"},
		{"s3 without bucket", func(c *Config) { c.Artifacts.Type = "s3" }, "bucket"},
		{"s3 half credentials", func(c *Config) {
			c.Artifacts.Type = "s3"
			c.Artifacts.S3.Bucket = "b"
			c.Artifacts.S3.SecretAccessKey = "secret"
		}, "artifacts.s3.access_key_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, errdefs.ErrConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Logging.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.level")
}
