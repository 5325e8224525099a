package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the fallback config file name.
const DefaultConfigFile = "config.yaml"

// defaultJWTExpiry applies when the config omits an expiry.
const defaultJWTExpiry = 24 * time.Hour

// File is the on-disk YAML configuration.
type File struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"` // Listen address, defaults to :8080.
}

// DatabaseConfig holds the storage DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL or SQLite DSN.
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret      string        `yaml:"secret"`       // HS256 signing secret.
	Expiry      time.Duration `yaml:"expiry"`       // Token lifetime.
	AdminExpiry time.Duration `yaml:"admin_expiry"` // Admin token lifetime, defaults to Expiry.
}

// RedisConfig holds optional cache settings. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string `yaml:"level"`       // logrus level name, defaults to info.
	File       string `yaml:"file"`        // Log file path; empty logs to stderr only.
	MaxSizeMB  int    `yaml:"max_size_mb"` // Rotation size, defaults to 100.
	MaxBackups int    `yaml:"max_backups"` // Rotated files kept, defaults to 3.
	MaxAgeDays int    `yaml:"max_age_days"` // Rotated file retention, defaults to 28.
}

// ResolveConfigPath picks the config file path: the explicit argument, the
// FLASH_INVITE_CONFIG environment variable, then ./config.yaml.
func ResolveConfigPath(explicit string) string {
	if trimmed := strings.TrimSpace(explicit); trimmed != "" {
		return filepath.Clean(trimmed)
	}
	if fromEnv := strings.TrimSpace(os.Getenv("FLASH_INVITE_CONFIG")); fromEnv != "" {
		return filepath.Clean(fromEnv)
	}
	return DefaultConfigFile
}

// Load reads and validates the YAML config file, applying defaults and
// environment overrides for the DSN and JWT secret.
func Load(path string) (*File, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	var cfg File
	if errDecode := yaml.Unmarshal(data, &cfg); errDecode != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errDecode)
	}

	if fromEnv := strings.TrimSpace(os.Getenv("DATABASE_DSN")); fromEnv != "" {
		cfg.Database.DSN = fromEnv
	}
	if fromEnv := strings.TrimSpace(os.Getenv("JWT_SECRET")); fromEnv != "" {
		cfg.JWT.Secret = fromEnv
	}

	cfg.applyDefaults()
	if errValidate := cfg.validate(); errValidate != nil {
		return nil, errValidate
	}
	return &cfg, nil
}

func (c *File) applyDefaults() {
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = ":8080"
	}
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = defaultJWTExpiry
	}
	if c.JWT.AdminExpiry <= 0 {
		c.JWT.AdminExpiry = c.JWT.Expiry
	}
	if strings.TrimSpace(c.Log.Level) == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays <= 0 {
		c.Log.MaxAgeDays = 28
	}
}

func (c *File) validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		return fmt.Errorf("config: jwt.secret is required")
	}
	return nil
}

// LoadDatabaseDSN loads just the database DSN from the config file.
func LoadDatabaseDSN(path string) (string, error) {
	cfg, errLoad := Load(path)
	if errLoad != nil {
		return "", errLoad
	}
	return cfg.Database.DSN, nil
}
