package config

import (
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-key-for-testing-only-0123456789"

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTPPort != "8080" || cfg.StoreDriver != DriverPostgres || cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MediaDriver != MediaLocal || cfg.MenuImagePath != "./menu-images" {
		t.Fatalf("unexpected media defaults %+v", cfg)
	}
	if cfg.RestockAmount != 5 || cfg.TxMaxAttempts != 5 || cfg.TxLockWait != 50*time.Millisecond {
		t.Fatalf("unexpected engine defaults %+v", cfg)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("RESTOCK_AMOUNT", "7")
	t.Setenv("TX_LOCK_WAIT", "250ms")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.StoreDriver != DriverMemory || cfg.RestockAmount != 7 || cfg.TxLockWait != 250*time.Millisecond || cfg.Timezone != "UTC" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "32 characters"},
		{"bad driver", map[string]string{"STORE_DRIVER": "mysql"}, "STORE_DRIVER"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"bad restock", map[string]string{"RESTOCK_AMOUNT": "lima"}, "RESTOCK_AMOUNT"},
		{"negative restock", map[string]string{"RESTOCK_AMOUNT": "-1"}, "negative"},
		{"bad duration", map[string]string{"TX_BACKOFF": "10"}, "TX_BACKOFF"},
		{"zero attempts", map[string]string{"TX_MAX_ATTEMPTS": "0"}, "TX_MAX_ATTEMPTS"},
		{"bad media driver", map[string]string{"MEDIA_DRIVER": "ftp"}, "MEDIA_DRIVER"},
		{"s3 without bucket", map[string]string{"MEDIA_DRIVER": "s3"}, "S3_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", testSecret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
