package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
env: "local"
http_server:
  address: "localhost:9090"
pgsql:
  host: "db"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.HTTPServer.Address != "localhost:9090" {
		t.Fatalf("Expected address from file, got %q", cfg.HTTPServer.Address)
	}
	if cfg.Access.MaxViews != 2 {
		t.Fatalf("Expected default max views 2, got %d", cfg.Access.MaxViews)
	}
	if cfg.Access.TokenTTL != 5*time.Minute {
		t.Fatalf("Expected default token TTL 5m, got %s", cfg.Access.TokenTTL)
	}
	if cfg.Hosting.Provider != "minio" {
		t.Fatalf("Expected default hosting provider minio, got %q", cfg.Hosting.Provider)
	}
	if cfg.PGSQL.Driver != "postgres" {
		t.Fatalf("Expected default driver postgres, got %q", cfg.PGSQL.Driver)
	}
	if len(cfg.Media.AllowedMimeTypes) != 3 {
		t.Fatalf("Expected 3 default mime types, got %v", cfg.Media.AllowedMimeTypes)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
access:
  max_views: 2
`)
	t.Setenv("ACCESS_MAX_VIEWS", "3")
	t.Setenv("SWEEPER_INTERVAL", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cfg.Access.MaxViews != 3 {
		t.Fatalf("Expected env override 3, got %d", cfg.Access.MaxViews)
	}
	if cfg.Sweeper.Interval != 30*time.Second {
		t.Fatalf("Expected sweeper interval 30s, got %s", cfg.Sweeper.Interval)
	}
}

func TestLoad_RejectsNegativeMaxViews(t *testing.T) {
	path := writeConfig(t, `
access:
  max_views: -1
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for negative max_views")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestPQSQL_DSN(t *testing.T) {
	p := PQSQL{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	want := "host=h port=1 user=u password=p dbname=d sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}
