package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "likesync.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIKESYNC_DEV_MODE", "true")
	t.Setenv("LIKESYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.Backfill.PageSize != 25 || cfg.Backfill.Concurrency != 10 {
		t.Errorf("backfill = %+v", cfg.Backfill)
	}
	if cfg.YouTube.BaseURL != "https://www.googleapis.com/youtube/v3" {
		t.Errorf("youtube base url = %q", cfg.YouTube.BaseURL)
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("LIKESYNC_DEV_MODE", "true")

	path := writeConfigFile(t, `
server:
  port: 9090
  read_timeout: 45s
database:
  path: /tmp/other.db
backfill:
  page_size: 50
log:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if time.Duration(cfg.Server.ReadTimeout) != 45*time.Second {
		t.Errorf("read timeout = %v", time.Duration(cfg.Server.ReadTimeout))
	}
	if cfg.Database.Path != "/tmp/other.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Backfill.PageSize != 50 {
		t.Errorf("page size = %d", cfg.Backfill.PageSize)
	}
	// Unspecified values keep their defaults
	if cfg.Backfill.Concurrency != 10 {
		t.Errorf("concurrency = %d, want default", cfg.Backfill.Concurrency)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
}

func TestLoadFromFile_InvalidDuration(t *testing.T) {
	t.Setenv("LIKESYNC_DEV_MODE", "true")

	path := writeConfigFile(t, `
server:
  read_timeout: banana
`)

	if _, err := LoadFromFile(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIKESYNC_DEV_MODE", "true")
	t.Setenv("LIKESYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LIKESYNC_PORT", "7070")
	t.Setenv("LIKESYNC_DB_PATH", "/tmp/env.db")
	t.Setenv("LIKESYNC_EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("LIKESYNC_BACKFILL_CONCURRENCY", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("model = %q", cfg.Embedding.Model)
	}
	if cfg.Backfill.Concurrency != 4 {
		t.Errorf("concurrency = %d", cfg.Backfill.Concurrency)
	}
}

func TestLoad_ValidationRequiresSecrets(t *testing.T) {
	t.Setenv("LIKESYNC_DEV_MODE", "")
	t.Setenv("LIKESYNC_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LIKESYNC_API_KEY", "")
	t.Setenv("LIKESYNC_BACKFILL_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error without secrets")
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LIKESYNC_API_KEY", "api-key")
	t.Setenv("LIKESYNC_BACKFILL_SECRET", "backfill-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Auth.APIKey != "api-key" || cfg.Backfill.Secret != "backfill-secret" {
		t.Errorf("secrets not applied: %+v", cfg.Auth)
	}
}

func TestDuration_YAMLRoundtrip(t *testing.T) {
	d := Duration(90 * time.Second)
	out, err := d.MarshalYAML()
	if err != nil {
		t.Fatal(err)
	}
	if out != "1m30s" {
		t.Errorf("marshal = %v, want 1m30s", out)
	}
}
