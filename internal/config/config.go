package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultJWTSecret = "supersecretkey"

type Config struct {
	Addr           string           `yaml:"addr"`
	Log            string           `yaml:"log_level"`
	JWTSecret      string           `yaml:"jwt_secret"`
	APITimeout     time.Duration    `yaml:"timeout"`
	DatabasePath   string           `yaml:"database_path"`
	TokenDuration  time.Duration    `yaml:"token_duration"`
	MigrateOnStart bool             `yaml:"migrate_on_start"`
	AdminEmails    []string         `yaml:"admin_emails"`
	Catalog        CatalogConfig    `yaml:"catalog"`
	Indexes        []IndexConfig    `yaml:"indexes"`
	Workers        WorkerConfig     `yaml:"workers"`
	Summarizer     SummarizerConfig `yaml:"summarizer"`
	Reminders      ReminderConfig   `yaml:"reminders"`
}

type CatalogConfig struct {
	FeaturedLimit  int  `yaml:"featured_limit"`
	EnforceIndexes bool `yaml:"enforce_indexes"`
}

// IndexConfig declares a composite index: equality fields plus a descending
// order-by field.
type IndexConfig struct {
	Collection string   `yaml:"collection"`
	Fields     []string `yaml:"fields"`
	OrderBy    string   `yaml:"order_by"`
}

type WorkerConfig struct {
	Count        int           `yaml:"count"`
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxAttempts  int           `yaml:"max_attempts"`
}

type SummarizerConfig struct {
	Enabled                 bool          `yaml:"enabled"`
	BaseURL                 string        `yaml:"base_url"`
	Model                   string        `yaml:"model"`
	MaxLength               int           `yaml:"max_length"`
	Timeout                 time.Duration `yaml:"timeout"`
	Retries                 int           `yaml:"retries"`
	Backoff                 time.Duration `yaml:"backoff"`
	CircuitFailureThreshold int           `yaml:"circuit_failure_threshold"`
	CircuitReset            time.Duration `yaml:"circuit_reset"`
}

type ReminderConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Schedule string        `yaml:"schedule"`
	Window   time.Duration `yaml:"window"`
}

// LoadConfig reads defaults from the environment, a .env file in the working
// directory included, and overlays the YAML file at path when given.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	apiTimeout := 15 * time.Second
	tokenDuration := 24 * time.Hour

	cfg := &Config{
		Addr:          getEnv("OPPHUB_ADDR", ":8080"),
		Log:           getEnv("OPPHUB_LOG_LEVEL", "info"),
		JWTSecret:     getEnv("OPPHUB_JWT_SECRET", defaultJWTSecret),
		APITimeout:    apiTimeout,
		DatabasePath:  getEnv("OPPHUB_DATABASE_PATH", "opphub.db"),
		TokenDuration: tokenDuration,
		AdminEmails:   splitList(os.Getenv("OPPHUB_ADMIN_EMAILS")),
		Catalog: CatalogConfig{
			FeaturedLimit:  6,
			EnforceIndexes: true,
		},
		Reminders: ReminderConfig{Enabled: true},
	}
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		if err := dec.Decode(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks required settings and fills defaults for optional sections.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DatabasePath == "" {
		return errors.New("database_path is required")
	}
	if c.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if c.JWTSecret == defaultJWTSecret && os.Getenv("OPPHUB_ENV") != "development" {
		return errors.New("jwt_secret uses the insecure default; set OPPHUB_JWT_SECRET or OPPHUB_ENV=development")
	}
	if c.APITimeout <= 0 {
		c.APITimeout = 15 * time.Second
	}
	if c.TokenDuration <= 0 {
		c.TokenDuration = 24 * time.Hour
	}

	if c.Catalog.FeaturedLimit <= 0 {
		c.Catalog.FeaturedLimit = 6
	}

	for i, idx := range c.Indexes {
		if idx.Collection == "" || idx.OrderBy == "" || len(idx.Fields) == 0 {
			return fmt.Errorf("indexes[%d]: collection, fields and order_by are required", i)
		}
	}

	if c.Workers.Count <= 0 {
		c.Workers.Count = 2
	}
	if c.Workers.PollInterval <= 0 {
		c.Workers.PollInterval = 500 * time.Millisecond
	}
	if c.Workers.MaxAttempts <= 0 {
		c.Workers.MaxAttempts = 3
	}

	s := &c.Summarizer
	if s.BaseURL == "" {
		s.BaseURL = "http://localhost:11434"
	}
	if s.Model == "" {
		s.Model = "llama3"
	}
	if s.MaxLength <= 0 {
		s.MaxLength = 100
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.Retries <= 0 {
		s.Retries = 2
	}
	if s.Backoff <= 0 {
		s.Backoff = 500 * time.Millisecond
	}
	if s.CircuitFailureThreshold <= 0 {
		s.CircuitFailureThreshold = 5
	}
	if s.CircuitReset <= 0 {
		s.CircuitReset = 30 * time.Second
	}

	if c.Reminders.Schedule == "" {
		c.Reminders.Schedule = "0 8 * * *"
	}
	if c.Reminders.Window <= 0 {
		c.Reminders.Window = 72 * time.Hour
	}

	return nil
}

// IsAdminEmail reports whether email is bootstrapped as an administrator.
func (c *Config) IsAdminEmail(email string) bool {
	for _, e := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}

	return false
}

// LogLevel maps the configured level name to a slog level. Unknown names
// fall back to info.
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log)); err != nil {
		return slog.LevelInfo
	}

	return l
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return def
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}

	return out
}
