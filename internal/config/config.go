// Package config loads service settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	BackendDynamoDB = "dynamodb"
	BackendFile     = "file"
)

// Config holds every setting used by the api, worker and orderctl binaries.
type Config struct {
	Port     string `yaml:"port"`
	RunLocal bool   `yaml:"run_local"`
	LogLevel string `yaml:"log_level"`

	Store StoreConfig `yaml:"store"`
	AWS   AWSConfig   `yaml:"aws"`
	LLM   LLMConfig   `yaml:"llm"`

	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	IdempotencyTTL     string   `yaml:"idempotency_ttl"`
}

// StoreConfig selects and names the persistence backend.
type StoreConfig struct {
	Backend          string `yaml:"backend"`
	DataDir          string `yaml:"data_dir"`
	DraftsTable      string `yaml:"drafts_table"`
	ConfirmedTable   string `yaml:"confirmed_table"`
	IdempotencyTable string `yaml:"idempotency_table"`
	HistoryTable     string `yaml:"history_table"`
}

// AWSConfig holds region, endpoint and the queue/metrics targets.
type AWSConfig struct {
	Region           string `yaml:"region"`
	Endpoint         string `yaml:"endpoint"` // e.g. LocalStack
	OrdersQueueURL   string `yaml:"orders_queue_url"`
	MetricsNamespace string `yaml:"metrics_namespace"`
}

// LLMConfig configures the Gemini extraction oracle.
type LLMConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "info",
		Store: StoreConfig{
			Backend:          BackendDynamoDB,
			DataDir:          "data",
			DraftsTable:      "orders",
			ConfirmedTable:   "confirmed_orders",
			IdempotencyTable: "idempotency",
			HistoryTable:     "chat_history",
		},
		AWS: AWSConfig{
			Region:           "us-east-1",
			MetricsNamespace: "ChatOrderflow",
		},
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "30s",
		},
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		IdempotencyTTL:     "48h",
	}
}

// Load returns defaults, overlaid with the YAML file named by CONFIG_FILE
// (if any) and then with environment variables.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit YAML path. An empty or missing path
// yields defaults plus environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Port = getEnv("PORT", c.Port)
	if v := os.Getenv("RUN_LOCAL"); v != "" {
		c.RunLocal = v == "true"
	}
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Store.Backend = getEnv("STORE_BACKEND", c.Store.Backend)
	c.Store.DataDir = getEnv("DATA_DIR", c.Store.DataDir)
	c.Store.DraftsTable = getEnv("DRAFTS_TABLE", c.Store.DraftsTable)
	c.Store.ConfirmedTable = getEnv("CONFIRMED_TABLE", c.Store.ConfirmedTable)
	c.Store.IdempotencyTable = getEnv("IDEMPOTENCY_TABLE", c.Store.IdempotencyTable)
	c.Store.HistoryTable = getEnv("HISTORY_TABLE", c.Store.HistoryTable)

	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.Endpoint = getEnv("AWS_ENDPOINT_URL", c.AWS.Endpoint)
	c.AWS.OrdersQueueURL = getEnv("ORDERS_QUEUE_URL", c.AWS.OrdersQueueURL)
	c.AWS.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.AWS.MetricsNamespace)

	c.LLM.APIKey = getEnv("GEMINI_API_KEY", c.LLM.APIKey)
	c.LLM.Model = getEnv("GEMINI_MODEL", c.LLM.Model)
	c.LLM.Timeout = getEnv("ORACLE_TIMEOUT", c.LLM.Timeout)

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORSAllowedOrigins = splitList(v)
	}
	c.IdempotencyTTL = getEnv("IDEMPOTENCY_TTL", c.IdempotencyTTL)
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendDynamoDB, BackendFile:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if _, err := time.ParseDuration(c.LLM.Timeout); err != nil {
		return fmt.Errorf("invalid oracle timeout %q: %w", c.LLM.Timeout, err)
	}
	if _, err := time.ParseDuration(c.IdempotencyTTL); err != nil {
		return fmt.Errorf("invalid idempotency ttl %q: %w", c.IdempotencyTTL, err)
	}
	return nil
}

// OracleTimeout returns the per-call extraction timeout.
func (c *Config) OracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IdempotencyWindow returns how long a submission key is remembered.
func (c *Config) IdempotencyWindow() time.Duration {
	d, err := time.ParseDuration(c.IdempotencyTTL)
	if err != nil {
		return 48 * time.Hour
	}
	return d
}

// DraftsFile is the draft store path for the file backend.
func (c *Config) DraftsFile() string {
	return filepath.Join(c.Store.DataDir, "order_info.json")
}

// ConfirmedFile is the confirmed store path for the file backend.
func (c *Config) ConfirmedFile() string {
	return filepath.Join(c.Store.DataDir, "confirmed_orders.json")
}

// HistoryFile is the chat history path for the file backend.
func (c *Config) HistoryFile() string {
	return filepath.Join(c.Store.DataDir, "chat_history.json")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
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
