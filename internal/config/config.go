package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	// ErrMissingQdrantURL is returned by Validate when no vector store URL is configured.
	ErrMissingQdrantURL = errors.New("QDRANT_URL environment variable is required")
	// ErrMissingQdrantAPIKey is returned by Validate when no vector store credential is configured.
	ErrMissingQdrantAPIKey = errors.New("QDRANT_API_KEY environment variable is required")
	// ErrDimensionMismatch is returned by Validate when the embedding model and
	// the collection disagree on vector length.
	ErrDimensionMismatch = errors.New("embedding dimensions do not match qdrant vector_size")
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type QueueConfig struct {
	Path      string `mapstructure:"path"`
	Policy    string `mapstructure:"policy"` // all, batch, single
	BatchSize int    `mapstructure:"batch_size"`
}

type IngestConfig struct {
	ChunkSize    int           `mapstructure:"chunk_size"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxPageBytes int           `mapstructure:"max_page_bytes"`
	// LocalRoot enables file:// URLs, resolved inside this directory.
	// Empty disables them.
	LocalRoot string `mapstructure:"local_root"`
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"` // r2, s3, s3compatible; detected from endpoint when empty
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

// Load reads configuration from an optional YAML file, .env and the environment.
// An empty configPath searches ./configs/config.yaml and ./config.yaml.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment knobs keep their conventional names.
	v.BindEnv("qdrant.url", "QDRANT_URL")
	v.BindEnv("qdrant.api_key", "QDRANT_API_KEY")
	v.BindEnv("embedding.api_key", "OPENAI_API_KEY")
	v.BindEnv("embedding.base_url", "OPENAI_BASE_URL")
	v.BindEnv("queue.path", "QUEUE_PATH")
	v.BindEnv("queue.policy", "QUEUE_POLICY")
	v.BindEnv("queue.batch_size", "QUEUE_BATCH_SIZE")
	v.BindEnv("ingest.local_root", "LOCAL_DOCS_ROOT")
	v.BindEnv("database.dsn", "DATABASE_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", false)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("qdrant.collection", "documentation")
	v.SetDefault("qdrant.vector_size", 1536)
	v.SetDefault("qdrant.segment_count", 2)
	v.SetDefault("qdrant.memmap_threshold", 20000)
	v.SetDefault("qdrant.replication_factor", 2)

	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", "text-embedding-ada-002")
	v.SetDefault("embedding.base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.max_attempts", 3)
	v.SetDefault("embedding.attempt_timeout", "30s")
	v.SetDefault("embedding.retry_delay", "1s")

	v.SetDefault("queue.path", "./queue.txt")
	v.SetDefault("queue.policy", "batch")
	v.SetDefault("queue.batch_size", 5)

	v.SetDefault("ingest.chunk_size", 1000)
	v.SetDefault("ingest.fetch_timeout", "30s")
	v.SetDefault("ingest.max_page_bytes", 10<<20)
	v.SetDefault("ingest.user_agent", "docqueue/1.0 (+https://github.com/timmy/docqueue)")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/docqueue.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "docqueue-snapshots")
}

// Validate reports missing settings that make the process unable to start.
// A missing embedding key is not fatal here; embedding fails lazily instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Qdrant.URL) == "" {
		return ErrMissingQdrantURL
	}
	if strings.TrimSpace(c.Qdrant.APIKey) == "" {
		return ErrMissingQdrantAPIKey
	}
	if err := c.Qdrant.validate(); err != nil {
		return err
	}
	if err := c.Embedding.Validate(); err != nil {
		return err
	}
	if c.Embedding.Dimensions != c.Qdrant.VectorSize {
		return fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, c.Embedding.Dimensions, c.Qdrant.VectorSize)
	}
	switch c.Queue.Policy {
	case "all", "single":
	case "batch":
		if c.Queue.BatchSize <= 0 {
			return fmt.Errorf("queue: batch_size must be positive, got %d", c.Queue.BatchSize)
		}
	default:
		return fmt.Errorf("queue: unknown policy %q", c.Queue.Policy)
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage: bucket is required when storage is enabled")
	}
	return nil
}
