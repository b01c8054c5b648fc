package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":8080" {
		t.Fatalf("unexpected address: %q", cfg.Server.Address)
	}
	if cfg.JWT.Expiration != time.Hour {
		t.Fatalf("unexpected jwt expiration: %v", cfg.JWT.Expiration)
	}
	if cfg.Client.Timeout != 2*time.Minute {
		t.Fatalf("unexpected client timeout: %v", cfg.Client.Timeout)
	}
	if cfg.Chat.DailyMessageLimit != 20 {
		t.Fatalf("unexpected daily limit: %d", cfg.Chat.DailyMessageLimit)
	}
	if cfg.S3.Enabled() {
		t.Fatal("expected s3 archive to be disabled without a bucket")
	}
}

func TestLoadConfigReadsYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	body := []byte("server:\n  address: \":9090\"\nchat:\n  daily_message_limit: 5\ns3:\n  bucket_name: plans\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_EXPIRATION", "30m")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("unexpected address: %q", cfg.Server.Address)
	}
	if cfg.Chat.DailyMessageLimit != 5 {
		t.Fatalf("unexpected daily limit: %d", cfg.Chat.DailyMessageLimit)
	}
	if cfg.JWT.Expiration != 30*time.Minute {
		t.Fatalf("expected env override, got %v", cfg.JWT.Expiration)
	}
	if !cfg.S3.Enabled() {
		t.Fatal("expected s3 archive to be enabled")
	}
}

func TestLoadConfigRejectsBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Fatal("expected parse error")
	}
}
