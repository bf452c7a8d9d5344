// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage driver names accepted in STORAGE_DRIVER.
const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

// Delivery mode names accepted in DELIVERY_MODE.
const (
	DeliveryLocal    = "local"
	DeliveryRedirect = "redirect"
	DeliveryProxy    = "proxy"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// BaseURL is the absolute base for shareable links, e.g. "https://dl.example.com".
	// Empty means "derive scheme and host from the incoming request".
	BaseURL string

	// DatabaseURL selects the registry backend by scheme:
	// "postgres://..." uses PostgreSQL, "sqlite://path" (or a bare path) uses SQLite.
	DatabaseURL string

	// MaxUploadBytes caps the request body of POST /upload.
	MaxUploadBytes int64

	// UploadAuthSecret, when non-empty, requires a valid HS256 bearer token on
	// POST /upload. Empty keeps uploads public.
	UploadAuthSecret string

	// DeliveryMode selects how GET /file/{shortID} serves bytes:
	// "local" streams from disk, "redirect" 302s to the blob URL,
	// "proxy" fetches the blob server-side and pipes it through.
	DeliveryMode string
	// RedirectAttachment makes redirect mode point at a presigned URL that
	// forces a download instead of the plain public URL.
	RedirectAttachment bool
	// ProxyTimeout bounds the upstream fetch in proxy mode.
	ProxyTimeout time.Duration

	// Record cache on the retrieval path.
	CacheSize int
	CacheTTL  time.Duration

	// Blob storage backend.
	StorageDriver   string
	StorageLocalDir string

	// Object storage (S3-compatible: MinIO locally, AWS S3 / ArvanCloud in production)
	StorageEndpoint   string
	StorageAccessKey  string
	StorageSecretKey  string
	StorageBucket     string
	StorageUseSSL     bool
	StoragePublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/droplink"
}

// Load reads configuration from a .env file (if present) and environment
// variables, then validates it. The defaults describe a fully local setup:
// SQLite registry, on-disk blobs, local streaming.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	cfg := &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),

		BaseURL:     strings.TrimRight(getEnv("BASE_URL", ""), "/"),
		DatabaseURL: getEnv("DATABASE_URL", "sqlite://droplink.db"),

		UploadAuthSecret: getEnv("UPLOAD_AUTH_SECRET", ""),

		DeliveryMode:       getEnv("DELIVERY_MODE", DeliveryLocal),
		RedirectAttachment: getEnvBool("REDIRECT_ATTACHMENT", false),

		StorageDriver:   getEnv("STORAGE_DRIVER", StorageLocal),
		StorageLocalDir: getEnv("STORAGE_LOCAL_DIR", "./data/files"),

		StorageEndpoint:   getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey:  getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey:  getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:     getEnv("STORAGE_BUCKET", "droplink"),
		StorageUseSSL:     getEnvBool("STORAGE_USE_SSL", false),
		StoragePublicBase: getEnv("STORAGE_PUBLIC_BASE", "http://localhost:9000/droplink"),
	}

	var err error
	if cfg.MaxUploadBytes, err = getEnvInt64("MAX_UPLOAD_BYTES", 100<<20); err != nil {
		return nil, err
	}
	if cfg.ProxyTimeout, err = getEnvDuration("PROXY_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getEnvInt("CACHE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects configurations that cannot work before the server starts.
func (c *Config) validate() error {
	switch c.StorageDriver {
	case StorageLocal, StorageMinio:
	default:
		return fmt.Errorf("STORAGE_DRIVER: unknown driver %q (expected %s or %s)",
			c.StorageDriver, StorageLocal, StorageMinio)
	}

	switch c.DeliveryMode {
	case DeliveryLocal, DeliveryRedirect, DeliveryProxy:
	default:
		return fmt.Errorf("DELIVERY_MODE: unknown mode %q (expected %s, %s or %s)",
			c.DeliveryMode, DeliveryLocal, DeliveryRedirect, DeliveryProxy)
	}

	// Local blobs have no URL to redirect to or proxy from, and remote blobs
	// are not on this machine's disk.
	if c.StorageDriver == StorageLocal && c.DeliveryMode != DeliveryLocal {
		return fmt.Errorf("DELIVERY_MODE: %q requires STORAGE_DRIVER=%s", c.DeliveryMode, StorageMinio)
	}
	if c.StorageDriver == StorageMinio && c.DeliveryMode == DeliveryLocal {
		return fmt.Errorf("DELIVERY_MODE: %s requires STORAGE_DRIVER=%s", DeliveryLocal, StorageLocal)
	}

	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES: must be positive, got %d", c.MaxUploadBytes)
	}
	if c.ProxyTimeout <= 0 {
		return fmt.Errorf("PROXY_TIMEOUT: must be positive, got %s", c.ProxyTimeout)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("CACHE_SIZE: must be positive, got %d", c.CacheSize)
	}
	return nil
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// DatabaseDriver splits DATABASE_URL into a driver name and a DSN the driver
// understands. A bare path is treated as a SQLite database file.
func (c *Config) DatabaseDriver() (driver, dsn string) {
	switch {
	case strings.HasPrefix(c.DatabaseURL, "postgres://"),
		strings.HasPrefix(c.DatabaseURL, "postgresql://"):
		return "postgres", c.DatabaseURL
	case strings.HasPrefix(c.DatabaseURL, "sqlite://"):
		return "sqlite", strings.TrimPrefix(c.DatabaseURL, "sqlite://")
	default:
		return "sqlite", c.DatabaseURL
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
