package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/garnizeh/opphub/internal/config"
)

func validConfig() *config.Config {
	return &config.Config{
		Addr:          ":8080",
		JWTSecret:     "strongsecret",
		APITimeout:    5 * time.Second,
		DatabasePath:  "opphub.db",
		TokenDuration: 1 * time.Hour,
	}
}

func TestValidate_InsecureJWT_FailsWhenNotDevelopment(t *testing.T) {
	t.Setenv("OPPHUB_ENV", "production")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for insecure JWT in non-development env")
	}
}

func TestValidate_InsecureJWT_AllowsDevelopment(t *testing.T) {
	t.Setenv("OPPHUB_ENV", "development")

	cfg := validConfig()
	cfg.JWTSecret = "supersecretkey"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected Validate to succeed in development env, got: %v", err)
	}
}

func TestValidate_MissingDatabasePath(t *testing.T) {
	cfg := validConfig()
	cfg.DatabasePath = ""

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail when database_path is empty")
	}
}

func TestValidate_BadIndex(t *testing.T) {
	cfg := validConfig()
	cfg.Indexes = []config.IndexConfig{{Collection: "opportunities", OrderBy: "createdAt"}}

	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected Validate to fail for index without fields")
	}
}

func TestValidate_DefaultsPopulated(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed unexpectedly: %v", err)
	}

	if cfg.Catalog.FeaturedLimit != 6 {
		t.Fatalf("expected featured limit default 6, got %d", cfg.Catalog.FeaturedLimit)
	}
	if cfg.Summarizer.BaseURL == "" {
		t.Fatalf("expected Summarizer.BaseURL to be populated, got empty")
	}
	if cfg.Summarizer.Timeout <= 0 {
		t.Fatalf("expected Summarizer.Timeout to be > 0")
	}
	if cfg.Summarizer.Retries == 0 {
		t.Fatalf("expected Summarizer.Retries default to be non-zero")
	}
	if cfg.Summarizer.MaxLength != 100 {
		t.Fatalf("expected Summarizer.MaxLength default 100, got %d", cfg.Summarizer.MaxLength)
	}
	if cfg.Workers.Count <= 0 || cfg.Workers.PollInterval <= 0 {
		t.Fatalf("expected worker defaults, got %+v", cfg.Workers)
	}
	if cfg.Reminders.Schedule == "" || cfg.Reminders.Window != 72*time.Hour {
		t.Fatalf("unexpected reminder defaults: %+v", cfg.Reminders)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPPHUB_ADDR", "")
	t.Setenv("OPPHUB_JWT_SECRET", "")
	t.Setenv("OPPHUB_DATABASE_PATH", "")
	t.Setenv("OPPHUB_ADMIN_EMAILS", "root@example.com, ops@example.com")

	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig returned error for empty path: %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":8080")
	}
	if cfg.JWTSecret != "supersecretkey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "supersecretkey")
	}
	if cfg.DatabasePath != "opphub.db" {
		t.Fatalf("unexpected DatabasePath: got %q want %q", cfg.DatabasePath, "opphub.db")
	}
	if cfg.APITimeout != 15*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 15*time.Second)
	}
	if !cfg.Catalog.EnforceIndexes {
		t.Fatalf("expected index enforcement on by default")
	}
	if !cfg.IsAdminEmail("OPS@example.com") {
		t.Fatalf("expected admin email match to be case-insensitive, got %v", cfg.AdminEmails)
	}
	if cfg.IsAdminEmail("someone@example.com") {
		t.Fatalf("unexpected admin match")
	}
}

func TestLoadConfig_FromFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	content := []byte(`addr: ":9090"
jwt_secret: "filekey"
timeout: "30s"
database_path: "test.db"
token_duration: "2h"
catalog:
  featured_limit: 4
  enforce_indexes: false
indexes:
  - collection: opportunities
    fields: [status]
    order_by: createdAt
summarizer:
  enabled: true
  model: "mistral"
`)
	if err := os.WriteFile(f.Name(), content, 0o600); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := config.LoadConfig(f.Name())
	if err != nil {
		t.Fatalf("LoadConfig returned error for file: %v", err)
	}

	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected Addr: got %q want %q", cfg.Addr, ":9090")
	}
	if cfg.JWTSecret != "filekey" {
		t.Fatalf("unexpected JWTSecret: got %q want %q", cfg.JWTSecret, "filekey")
	}
	if cfg.APITimeout != 30*time.Second {
		t.Fatalf("unexpected APITimeout: got %v want %v", cfg.APITimeout, 30*time.Second)
	}
	if cfg.TokenDuration != 2*time.Hour {
		t.Fatalf("unexpected TokenDuration: got %v want %v", cfg.TokenDuration, 2*time.Hour)
	}
	if cfg.Catalog.FeaturedLimit != 4 || cfg.Catalog.EnforceIndexes {
		t.Fatalf("unexpected catalog config: %+v", cfg.Catalog)
	}
	if len(cfg.Indexes) != 1 || cfg.Indexes[0].OrderBy != "createdAt" {
		t.Fatalf("unexpected indexes: %+v", cfg.Indexes)
	}
	if !cfg.Summarizer.Enabled || cfg.Summarizer.Model != "mistral" {
		t.Fatalf("unexpected summarizer: %+v", cfg.Summarizer)
	}
}

func TestLoadConfig_BadPath(t *testing.T) {
	if _, err := config.LoadConfig("/path/that/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent path, got nil")
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bad-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	f.Close()

	if err := os.WriteFile(f.Name(), []byte("::: not yaml :::"), 0o600); err != nil {
		t.Fatalf("failed to write bad yaml: %v", err)
	}

	if _, err := config.LoadConfig(f.Name()); err == nil {
		t.Fatalf("expected YAML decode error, got nil")
	}
}

func TestLogLevel(t *testing.T) {
	tests := map[string]string{
		"debug": "DEBUG",
		"WARN":  "WARN",
		"error": "ERROR",
		"":      "INFO",
		"loud":  "INFO",
	}
	for in, want := range tests {
		cfg := &config.Config{Log: in}
		if got := cfg.LogLevel().String(); got != want {
			t.Errorf("LogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestIsAdminEmail(t *testing.T) {
	cfg := &config.Config{AdminEmails: []string{" Boss@Example.com ", "ops@example.com"}}

	if !cfg.IsAdminEmail("boss@example.com") {
		t.Errorf("expected case-insensitive match")
	}
	if cfg.IsAdminEmail("ann@example.com") {
		t.Errorf("unexpected admin match")
	}
}
