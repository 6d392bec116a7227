// Package config provides YAML-based configuration loading for Punchlist.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/punchlist/internal/models"
	"gopkg.in/yaml.v3"
)

// SecretEnv overrides auth.jwt_secret when set.
const SecretEnv = "PUNCHLIST_JWT_SECRET"

// Config is the top-level Punchlist configuration, loaded from punchlist.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Storage  StorageConfig  `yaml:"storage"`
	Timeouts TimeoutConfig  `yaml:"timeouts"`
	Digest   DigestConfig   `yaml:"digest"`
	Log      LogConfig      `yaml:"log"`
	Users    []UserConfig   `yaml:"users"`
}

// DatabaseConfig selects the gorm driver and how to reach it. DSN wins over
// the individual connection fields when set.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb"`
}

// AuthConfig holds token signing and identity cache settings.
type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	IdentityCacheTTL  time.Duration `yaml:"identity_cache_ttl"`
	IdentityCacheSize int           `yaml:"identity_cache_size"`
}

// StorageConfig locates attachment bytes on disk.
type StorageConfig struct {
	Dir string `yaml:"dir"`
}

// TimeoutConfig bounds calls to external collaborators.
type TimeoutConfig struct {
	FileStorage time.Duration `yaml:"file_storage"`
	Identity    time.Duration `yaml:"identity"`
}

// DigestConfig schedules the overdue sweep. An empty schedule disables it.
type DigestConfig struct {
	Schedule string `yaml:"schedule"`
}

// LogConfig selects the logger mode ("dev" or "prod").
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// UserConfig seeds one user.
type UserConfig struct {
	FullName string `yaml:"full_name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.DSN == "" {
			c.Database.DSN = "punchlist.db"
		}
	case "mysql":
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
	case "postgres":
		if c.Database.Host == "" {
			c.Database.Host = "localhost"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}
	if c.Database.Name == "" {
		c.Database.Name = "punchlist"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = 8
	}

	if s := os.Getenv(SecretEnv); s != "" {
		c.Auth.JWTSecret = s
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 72 * time.Hour
	}
	if c.Auth.IdentityCacheTTL == 0 {
		c.Auth.IdentityCacheTTL = 30 * time.Second
	}
	if c.Auth.IdentityCacheSize == 0 {
		c.Auth.IdentityCacheSize = 1024
	}

	if c.Storage.Dir == "" {
		c.Storage.Dir = "uploads"
	}
	if c.Timeouts.FileStorage == 0 {
		c.Timeouts.FileStorage = 10 * time.Second
	}
	if c.Timeouts.Identity == 0 {
		c.Timeouts.Identity = 3 * time.Second
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
	for i := range c.Users {
		c.Users[i].Role = strings.ToLower(strings.TrimSpace(c.Users[i].Role))
		c.Users[i].Email = strings.TrimSpace(c.Users[i].Email)
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" && c.Database.User == "" {
		errs = append(errs, "database.user is required for "+c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, "auth.jwt_secret is required (or set "+SecretEnv+")")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxUploadMB < 0 {
		errs = append(errs, "server.max_upload_mb must not be negative")
	}
	if c.Timeouts.FileStorage < 0 || c.Timeouts.Identity < 0 {
		errs = append(errs, "timeouts must not be negative")
	}
	if c.Digest.Schedule != "" {
		if _, err := cron.ParseStandard(c.Digest.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("digest.schedule: %v", err))
		}
	}
	seen := make(map[string]bool)
	for i, u := range c.Users {
		if u.FullName == "" {
			errs = append(errs, fmt.Sprintf("users[%d].full_name is required", i))
		}
		if u.Email == "" {
			errs = append(errs, fmt.Sprintf("users[%d].email is required", i))
		} else if seen[u.Email] {
			errs = append(errs, fmt.Sprintf("users[%d].email %q is duplicated", i, u.Email))
		}
		seen[u.Email] = true
		if !models.Role(u.Role).Valid() {
			errs = append(errs, fmt.Sprintf("users[%d].role %q is not one of engineer, manager, customer", i, u.Role))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
