package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort      string
	StoreDriver   string // "postgres" or "memory"
	DatabaseDSN   string
	SnapshotPath  string // memory driver only, empty keeps everything in RAM
	JWTSecret     string
	CORSOrigins   string
	MenuImagePath string // where uploaded menu photos are written
	Timezone      string

	MediaDriver     string // "local" or "s3"
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string

	RestockAmount int // entitlement every student gets on bulk restock

	TxMaxAttempts int
	TxLockWait    time.Duration
	TxBackoff     time.Duration
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	MediaLocal = "local"
	MediaS3    = "s3"

	defaultDSN  = "host=localhost user=postgres password=postgres dbname=makan port=5432 sslmode=disable"
	defaultCORS = "http://localhost:5173"
)

// Load reads the environment (and .env when present) and stops the process
// on invalid settings.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] .env not found, using process environment")
	}

	cfg, err := Parse()
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	if cfg.StoreDriver == DriverPostgres && cfg.DatabaseDSN == defaultDSN {
		log.Println("[WARN] DATABASE_DSN uses the default value, set your own Postgres connection for production.")
	}
	if cfg.CORSOrigins == defaultCORS {
		log.Println("[WARN] CORS_ALLOWED_ORIGINS uses the default value, set your own domain for production.")
	}
	return cfg
}

// Parse builds a Config from the current environment.
func Parse() (*Config, error) {
	cfg := &Config{
		HTTPPort:      getEnv("HTTP_PORT", "8080"),
		StoreDriver:   getEnv("STORE_DRIVER", DriverPostgres),
		DatabaseDSN:   getEnv("DATABASE_DSN", defaultDSN),
		SnapshotPath:  getEnv("SNAPSHOT_PATH", ""),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		CORSOrigins:   getEnv("CORS_ALLOWED_ORIGINS", defaultCORS),
		MenuImagePath: getEnv("MENU_IMAGE_PATH", "./menu-images"),
		Timezone:      getEnv("TIMEZONE", "Asia/Jakarta"),

		MediaDriver:     getEnv("MEDIA_DRIVER", MediaLocal),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", "auto"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
	}

	var err error
	if cfg.RestockAmount, err = getEnvInt("RESTOCK_AMOUNT", 5); err != nil {
		return nil, err
	}
	if cfg.TxMaxAttempts, err = getEnvInt("TX_MAX_ATTEMPTS", 5); err != nil {
		return nil, err
	}
	if cfg.TxLockWait, err = getEnvDuration("TX_LOCK_WAIT", 50*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.TxBackoff, err = getEnvDuration("TX_BACKOFF", 10*time.Millisecond); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not set, it is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if cfg.StoreDriver != DriverPostgres && cfg.StoreDriver != DriverMemory {
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}
	switch cfg.MediaDriver {
	case MediaLocal:
	case MediaS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when MEDIA_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("MEDIA_DRIVER must be %q or %q, got %q", MediaLocal, MediaS3, cfg.MediaDriver)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", cfg.Timezone, err)
	}
	if cfg.RestockAmount < 0 {
		return nil, fmt.Errorf("RESTOCK_AMOUNT cannot be negative")
	}
	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 50ms: %w", key, err)
	}
	return d, nil
}
