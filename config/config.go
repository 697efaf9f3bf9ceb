package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Access     AccessConfig     `yaml:"access"`
	Dialogue   DialogueConfig   `yaml:"dialogue"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for low-stock web push notifications.
// Alerts are disabled when either key is empty.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	APIToken        string  `yaml:"api_token"` // bearer token required on operator routes
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"` // silent, error, warn, info
}

// Access policies understood by the access gate.
const (
	PolicyAllowList   = "allowlist"
	PolicyProvisioned = "provisioned"
)

// AccessConfig selects how operator identities are authorized.
type AccessConfig struct {
	Policy       string  `yaml:"policy"`
	AdminIDs     []int64 `yaml:"admin_ids"`
	DefaultRole  string  `yaml:"default_role"`
	AutoActivate bool    `yaml:"auto_activate"`
}

// DialogueConfig controls the lifetime of pending quantity prompts.
type DialogueConfig struct {
	TTLSeconds int           `yaml:"ttl_seconds"` // 0 keeps a prompt until it is resolved
	TTL        time.Duration `yaml:"-"`
}

// LedgerConfig holds settings for the inventory and maintenance ledger.
type LedgerConfig struct {
	Timezone string         `yaml:"timezone"`
	LowStock map[string]int `yaml:"low_stock"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets deployments keep secrets and the admin list out of the YAML file.
func applyEnv(cfg *Config) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if token := os.Getenv("API_TOKEN"); token != "" {
		cfg.Server.APIToken = token
	}
	if raw := os.Getenv("ADMIN_IDS"); raw != "" {
		cfg.Access.AdminIDs = ParseIDList(raw)
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Access.Policy == "" {
		cfg.Access.Policy = PolicyAllowList
	}
	if cfg.Access.DefaultRole == "" {
		cfg.Access.DefaultRole = "staff"
	}

	if cfg.Dialogue.TTLSeconds < 0 {
		cfg.Dialogue.TTLSeconds = 0
	}
	cfg.Dialogue.TTL = time.Duration(cfg.Dialogue.TTLSeconds) * time.Second

	if cfg.Ledger.Timezone == "" {
		cfg.Ledger.Timezone = "UTC"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}

// ParseIDList parses a comma separated list of numeric operator ids.
// Blank and malformed entries are skipped.
func ParseIDList(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Warning: ignoring invalid operator id %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
