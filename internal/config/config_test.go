package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	uploads := filepath.Join(t.TempDir(), "uploads")
	dir := writeConfig(t, "jwt:\n  secret: s\n  expire_hours: 2\nstorage:\n  local_path: "+uploads+"\n")

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" || cfg.Database.Driver != "mysql" {
		t.Fatalf("unexpected defaults: %+v", cfg.Server)
	}
	if cfg.JWT.ExpireTime != 2*time.Hour {
		t.Fatalf("expected 2h expiry, got %v", cfg.JWT.ExpireTime)
	}
	if cfg.Engine.AttemptRetryLimit != DefaultAttemptRetryLimit || cfg.Engine.FastLearnerMinutes != DefaultFastLearnerMinutes {
		t.Fatalf("unexpected engine defaults: %+v", cfg.Engine)
	}
	if cfg.Log.File != "logs/app.log" || !cfg.Log.Console || cfg.Log.MaxSizeMB != 100 {
		t.Fatalf("unexpected log defaults: %+v", cfg.Log)
	}
	if _, err := os.Stat(uploads); err != nil {
		t.Fatalf("expected local storage dir to be created: %v", err)
	}
}

func TestLoadConfig_ReleaseRequiresStrongSecret(t *testing.T) {
	dir := writeConfig(t, "server:\n  mode: release\njwt:\n  secret: short\nstorage:\n  type: minio\n")
	if _, err := LoadConfig(dir); err == nil {
		t.Fatalf("expected error for short secret in release mode")
	}
}

func TestEngineConfig_Normalize(t *testing.T) {
	got := EngineConfig{AttemptRetryLimit: -1, FastLearnerMinutes: 30}.Normalize()
	if got.AttemptRetryLimit != DefaultAttemptRetryLimit || got.FastLearnerMinutes != 30 {
		t.Fatalf("unexpected normalize result: %+v", got)
	}
}

func TestRedisConfig_LessonCacheTTL(t *testing.T) {
	if ttl := (RedisConfig{}).LessonCacheTTL(); ttl != 5*time.Minute {
		t.Fatalf("expected default 5m, got %v", ttl)
	}
	if ttl := (RedisConfig{LessonCacheTTLSeconds: 30}).LessonCacheTTL(); ttl != 30*time.Second {
		t.Fatalf("expected 30s, got %v", ttl)
	}
}
