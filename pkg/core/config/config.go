// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway configuration from YAML and an explicit
// environment lookup. Nothing outside cmd/ reads the process environment.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/profile"
	"github.com/leseb/bedrock-gw/pkg/provider"
)

// Config represents the main configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Bedrock     BedrockConfig     `yaml:"bedrock"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Cache       CacheConfig       `yaml:"cache"`
	Artifacts   ArtifactsConfig   `yaml:"artifacts"`
	RAG         RAGConfig         `yaml:"rag"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text, pretty
}

// BedrockConfig configures the Bedrock Runtime transport. Static keys are
// optional; the default AWS credential chain applies otherwise.
type BedrockConfig struct {
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	SessionToken    string        `yaml:"session_token"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxAttempts     int           `yaml:"max_attempts"`
	TextModel       string        `yaml:"text_model"`
	ImageModel      string        `yaml:"image_model"`
}

// Embedding providers.
const (
	EmbeddingBedrock = "bedrock"
	EmbeddingOpenAI  = "openai"
)

// EmbeddingConfig contains embedding service configuration
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // "bedrock" (default) or "openai"
	Endpoint   string `yaml:"endpoint"` // OpenAI-compatible base URL, e.g. "https://api.openai.com/v1"
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`      // e.g. "amazon.titan-embed-text-v1"
	Dimensions int    `yaml:"dimensions"` // vector length of the store
}

// VectorStoreConfig selects exactly one backend and holds its settings.
type VectorStoreConfig struct {
	Type     string         `yaml:"type"` // memory, sqlite, postgres, milvus, qdrant, pinecone, upstash
	Postgres PostgresConfig `yaml:"postgres"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Milvus   MilvusConfig   `yaml:"milvus"`
	Qdrant   QdrantConfig   `yaml:"qdrant"`
	Pinecone PineconeConfig `yaml:"pinecone"`
	Upstash  UpstashConfig  `yaml:"upstash"`
}

type PostgresConfig struct {
	DSN          string `yaml:"dsn"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"sslmode"`
	Table        string `yaml:"table"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Migrate      *bool  `yaml:"migrate"`
}

// ConnString returns DSN, or a URL built from the individual fields.
func (p PostgresConfig) ConnString() string {
	if p.DSN != "" {
		return p.DSN
	}
	if p.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(p.Port)),
		Path:   "/" + p.Database,
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

type SQLiteConfig struct {
	Path  string `yaml:"path"`
	Table string `yaml:"table"`
}

type MilvusConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Collection string `yaml:"collection"`
}

type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	TLS        bool   `yaml:"tls"`
	Collection string `yaml:"collection"`
}

type PineconeConfig struct {
	APIKey      string `yaml:"api_key"`
	Environment string `yaml:"environment"`
	IndexName   string `yaml:"index_name"`
}

type UpstashConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// Params returns the registry parameters of the selected backend.
func (v VectorStoreConfig) Params() provider.Params {
	p := provider.Params{}
	set := func(k, val string) {
		if val != "" {
			p[k] = val
		}
	}
	switch v.Type {
	case "postgres":
		set("dsn", v.Postgres.ConnString())
		set("table", v.Postgres.Table)
		if v.Postgres.MaxOpenConns > 0 {
			p["max_open_conns"] = strconv.Itoa(v.Postgres.MaxOpenConns)
		}
		if v.Postgres.Migrate != nil {
			p["migrate"] = strconv.FormatBool(*v.Postgres.Migrate)
		}
	case "sqlite":
		set("path", v.SQLite.Path)
		set("table", v.SQLite.Table)
	case "milvus":
		set("address", v.Milvus.Address)
		set("username", v.Milvus.Username)
		set("password", v.Milvus.Password)
		set("collection", v.Milvus.Collection)
	case "qdrant":
		set("host", v.Qdrant.Host)
		if v.Qdrant.Port > 0 {
			p["port"] = strconv.Itoa(v.Qdrant.Port)
		}
		set("api_key", v.Qdrant.APIKey)
		p["tls"] = strconv.FormatBool(v.Qdrant.TLS)
		set("collection", v.Qdrant.Collection)
	case "pinecone":
		set("api_key", v.Pinecone.APIKey)
		set("environment", v.Pinecone.Environment)
		set("index", v.Pinecone.IndexName)
	case "upstash":
		set("url", v.Upstash.URL)
		set("token", v.Upstash.Token)
	}
	return p
}

// CacheConfig configures the embedding cache. Type "none" disables it.
type CacheConfig struct {
	Type  string      `yaml:"type"` // none, redis
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Address  string        `yaml:"address"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// ArtifactsConfig configures where generated images and uploaded documents
// are kept. Type "none" disables artifact storage.
type ArtifactsConfig struct {
	Type    string   `yaml:"type"` // none, memory, filesystem, s3
	BaseDir string   `yaml:"base_dir"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Endpoint string `yaml:"endpoint"`

	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// Params returns the registry parameters of the selected artifact store.
func (a ArtifactsConfig) Params() provider.Params {
	switch a.Type {
	case "filesystem":
		return provider.Params{"base_dir": a.BaseDir}
	case "s3":
		return provider.Params{
			"bucket":            a.S3.Bucket,
			"region":            a.S3.Region,
			"prefix":            a.S3.Prefix,
			"endpoint":          a.S3.Endpoint,
			"access_key_id":     a.S3.AccessKeyID,
			"secret_access_key": a.S3.SecretAccessKey,
		}
	}
	return provider.Params{}
}

// RAGConfig tunes retrieval, chunking and prompt templates.
type RAGConfig struct {
	ContextLimit      int    `yaml:"context_limit"`
	MaxContextChars   int    `yaml:"max_context_chars"`
	ChunkSize         int    `yaml:"chunk_size"`
	ChunkOverlap      int    `yaml:"chunk_overlap"`
	ContextTemplate   string `yaml:"context_template"`
	NoContextTemplate string `yaml:"no_context_template"`
}

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// MapLookup adapts a map for tests and embedding.
func MapLookup(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides from lookup, fills defaults and validates.
func Load(path string, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errdefs.Wrap(errdefs.KindConfig, err, "read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errdefs.Wrap(errdefs.KindConfig, err, "parse config")
		}
	}

	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return nil, err
		}
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns default configuration
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ApplyEnv overrides file settings with environment variables. At most
// one of USE_PSQL, USE_PINECONE and USE_UPSTASH may be "true".
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errdefs.Configf("%s: invalid integer %q", key, v)
		}
		*dst = n
		return nil
	}

	if err := num("PORT", &c.Server.Port); err != nil {
		return err
	}
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)

	str("AWS_DEFAULT_REGION", &c.Bedrock.Region)
	str("AWS_REGION", &c.Bedrock.Region)
	str("BEDROCK_ENDPOINT", &c.Bedrock.Endpoint)

	str("EMBEDDING_ENDPOINT", &c.Embedding.Endpoint)
	str("EMBEDDING_API_KEY", &c.Embedding.APIKey)
	str("EMBEDDING_MODEL", &c.Embedding.Model)
	if err := num("EMBEDDING_DIMENSIONS", &c.Embedding.Dimensions); err != nil {
		return err
	}
	if v, ok := lookup("EMBEDDING_ENDPOINT"); ok && v != "" && c.Embedding.Provider == "" {
		c.Embedding.Provider = EmbeddingOpenAI
	}

	vs := &c.VectorStore
	str("DATABASE_URL", &vs.Postgres.DSN)
	str("POSTGRES_HOST", &vs.Postgres.Host)
	if err := num("POSTGRES_PORT", &vs.Postgres.Port); err != nil {
		return err
	}
	str("POSTGRES_USERNAME", &vs.Postgres.Username)
	str("POSTGRES_PASSWORD", &vs.Postgres.Password)
	str("POSTGRES_DATABASE", &vs.Postgres.Database)
	str("PINECONE_API_KEY", &vs.Pinecone.APIKey)
	str("PINECONE_ENVIRONMENT", &vs.Pinecone.Environment)
	str("PINECONE_INDEX_NAME", &vs.Pinecone.IndexName)
	str("UPSTASH_URL", &vs.Upstash.URL)
	str("UPSTASH_TOKEN", &vs.Upstash.Token)
	str("MILVUS_ADDRESS", &vs.Milvus.Address)
	str("QDRANT_HOST", &vs.Qdrant.Host)
	str("SQLITE_PATH", &vs.SQLite.Path)

	var selected []string
	for _, flag := range []struct{ env, backend string }{
		{"USE_PSQL", "postgres"},
		{"USE_PINECONE", "pinecone"},
		{"USE_UPSTASH", "upstash"},
	} {
		if v, ok := lookup(flag.env); ok && v == "true" {
			selected = append(selected, flag.backend)
		}
	}
	switch len(selected) {
	case 0:
		// an address alone selects its backend when the file names none
		if vs.Type == "" || vs.Type == "memory" {
			if v, ok := lookup("MILVUS_ADDRESS"); ok && v != "" {
				vs.Type = "milvus"
			} else if v, ok := lookup("QDRANT_HOST"); ok && v != "" {
				vs.Type = "qdrant"
			} else if v, ok := lookup("SQLITE_PATH"); ok && v != "" {
				vs.Type = "sqlite"
			}
		}
	case 1:
		vs.Type = selected[0]
	default:
		return errdefs.Configf("only one of USE_PSQL, USE_PINECONE, USE_UPSTASH may be set, got %s", strings.Join(selected, ", "))
	}

	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cache.Redis.Address = v
		if c.Cache.Type == "" {
			c.Cache.Type = "redis"
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 120 * time.Second
	}
	if c.Server.MaxUploadBytes == 0 {
		c.Server.MaxUploadBytes = 32 << 20
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	if c.Bedrock.Region == "" {
		c.Bedrock.Region = "us-east-1"
	}
	if c.Bedrock.Timeout == 0 {
		c.Bedrock.Timeout = 60 * time.Second
	}
	if c.Bedrock.TextModel == "" {
		c.Bedrock.TextModel = profile.DefaultTextModel
	}
	if c.Bedrock.ImageModel == "" {
		c.Bedrock.ImageModel = profile.DefaultImageModel
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = EmbeddingBedrock
	}
	if c.Embedding.Model == "" {
		if c.Embedding.Provider == EmbeddingOpenAI {
			c.Embedding.Model = "text-embedding-3-small"
		} else {
			c.Embedding.Model = profile.DefaultEmbeddingModel
		}
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = profile.EmbeddingDimensions(c.Embedding.Model)
		if c.Embedding.Dimensions == 0 {
			c.Embedding.Dimensions = 1536
		}
	}

	vs := &c.VectorStore
	if vs.Type == "" {
		vs.Type = "memory"
	}
	if vs.Postgres.Port == 0 {
		vs.Postgres.Port = 5432
	}
	if vs.Postgres.SSLMode == "" && vs.Postgres.DSN == "" {
		vs.Postgres.SSLMode = "disable"
	}

	if c.Cache.Type == "" {
		c.Cache.Type = "none"
	}
	if c.Cache.Type == "redis" && c.Cache.Redis.TTL == 0 {
		c.Cache.Redis.TTL = 24 * time.Hour
	}

	if c.Artifacts.Type == "" {
		c.Artifacts.Type = "memory"
	}

	if c.RAG.ContextLimit == 0 {
		c.RAG.ContextLimit = 5
	}
	if c.RAG.MaxContextChars == 0 {
		c.RAG.MaxContextChars = 12000
	}
	if c.RAG.ChunkSize == 0 {
		c.RAG.ChunkSize = 800
	}
	if c.RAG.ChunkOverlap == 0 {
		c.RAG.ChunkOverlap = 200
	}
}

var (
	vectorStoreTypes = []string{"memory", "sqlite", "postgres", "milvus", "qdrant", "pinecone", "upstash"}
	logLevels        = []string{"debug", "info", "warn", "error"}
	logFormats       = []string{"json", "text", "pretty"}
)

// Validate reports every problem at once as a single config error.
func (c *Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		bad("server.port %d out of range", c.Server.Port)
	}
	if !slices.Contains(logLevels, c.Logging.Level) {
		bad("logging.level %q is not one of %v", c.Logging.Level, logLevels)
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		bad("logging.format %q is not one of %v", c.Logging.Format, logFormats)
	}
	if (c.Bedrock.AccessKeyID == "") != (c.Bedrock.SecretAccessKey == "") {
		bad("bedrock.access_key_id and bedrock.secret_access_key must be set together")
	}

	switch c.Embedding.Provider {
	case EmbeddingBedrock:
	case EmbeddingOpenAI:
		if c.Embedding.Endpoint == "" && c.Embedding.APIKey == "" {
			bad("embedding: openai provider needs an endpoint or api_key")
		}
	default:
		bad("embedding.provider %q is not one of bedrock, openai", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		bad("embedding.dimensions must be positive")
	}

	vs := c.VectorStore
	switch vs.Type {
	case "postgres":
		if vs.Postgres.ConnString() == "" {
			bad("vector_store.postgres: dsn (DATABASE_URL) or host (POSTGRES_HOST) is required")
		}
	case "milvus":
		if vs.Milvus.Address == "" {
			bad("vector_store.milvus.address is required")
		}
	case "qdrant":
		if vs.Qdrant.Host == "" {
			bad("vector_store.qdrant.host is required")
		}
	case "pinecone":
		if vs.Pinecone.APIKey == "" || vs.Pinecone.IndexName == "" {
			bad("vector_store.pinecone: api_key and index_name are required")
		}
	case "upstash":
		if vs.Upstash.URL == "" || vs.Upstash.Token == "" {
			bad("vector_store.upstash: url and token are required")
		}
	}
	if !slices.Contains(vectorStoreTypes, vs.Type) {
		bad("vector_store.type %q is not one of %v", vs.Type, vectorStoreTypes)
	}

	switch c.Cache.Type {
	case "none":
	case "redis":
		if c.Cache.Redis.Address == "" {
			bad("cache.redis.address is required")
		}
	default:
		bad("cache.type %q is not one of none, redis", c.Cache.Type)
	}

	switch c.Artifacts.Type {
	case "none", "memory":
	case "filesystem":
		if c.Artifacts.BaseDir == "" {
			bad("artifacts.base_dir is required")
		}
	case "s3":
		if c.Artifacts.S3.Bucket == "" {
			bad("artifacts.s3.bucket is required")
		}
		if (c.Artifacts.S3.AccessKeyID == "") != (c.Artifacts.S3.SecretAccessKey == "") {
			bad("artifacts.s3.access_key_id and artifacts.s3.secret_access_key must be set together")
		}
	default:
		bad("artifacts.type %q is not one of none, memory, filesystem, s3", c.Artifacts.Type)
	}

	if c.RAG.ChunkSize <= 0 || c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		bad("rag: need 0 <= chunk_overlap (%d) < chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if c.RAG.ContextLimit <= 0 {
		bad("rag.context_limit must be positive")
	}

	if len(problems) > 0 {
		return errdefs.Configf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
