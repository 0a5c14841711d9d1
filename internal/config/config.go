// Package config loads hookwarden settings from YAML, .env and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/hookwarden/internal/cache"
	"github.com/ppiankov/hookwarden/internal/identity"
	"github.com/ppiankov/hookwarden/internal/model"
	"github.com/ppiankov/hookwarden/internal/redact"
	"github.com/ppiankov/hookwarden/internal/restrict"
	"github.com/ppiankov/hookwarden/internal/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOOKWARDEN_"

// Config is the full hookwarden configuration. It is read-only once loaded.
type Config struct {
	Identities   map[string]model.Identity          `yaml:"identities" validate:"dive,keys,required,endkeys,oneof=backend frontend orchestrator"`
	Roles        map[model.Identity]model.RoleRules `yaml:"roles" validate:"dive,keys,oneof=backend frontend orchestrator,endkeys"`
	Cache        CacheConfig                        `yaml:"cache"`
	Restrictions Restrictions                       `yaml:"restrictions"`
	Telemetry    TelemetryConfig                    `yaml:"telemetry"`
	ProjectRoot  string                             `yaml:"project_root"`
	DefaultAgent string                             `yaml:"default_agent" validate:"omitempty,oneof=backend frontend devops reviewer planner"`
	AuditLog     string                             `yaml:"audit_log"`
}

// CacheConfig selects the policy cache backend.
type CacheConfig struct {
	Backend        string        `yaml:"backend" validate:"omitempty,oneof=file memory redis sqlite"`
	Dir            string        `yaml:"dir"`
	TTLSeconds     int           `yaml:"ttl_seconds" validate:"gte=0"`
	RedisAddr      string        `yaml:"redis_addr" validate:"omitempty,hostname_port"`
	RedisRetention time.Duration `yaml:"redis_retention" validate:"gte=0"`
	SQLitePath     string        `yaml:"sqlite_path"`
}

// Restrictions configures the path allow-list gate.
type Restrictions struct {
	AllowedPaths []string `yaml:"allowed_paths"`
}

// TelemetryConfig configures event egress. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string        `yaml:"endpoint" validate:"omitempty,url"`
	AgentID     string        `yaml:"agent_id"`
	ContainerID string        `yaml:"container_id"`
	Timeout     time.Duration `yaml:"timeout" validate:"gte=0"`
	// Redact scrubs credentials from tool payloads before they are posted.
	Redact         bool              `yaml:"redact"`
	RedactPatterns map[string]string `yaml:"redact_patterns" validate:"dive,keys,required,endkeys,required"`
}

var validate = validator.New()

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	identities := make(map[string]model.Identity, len(identity.DefaultIdentities))
	for k, v := range identity.DefaultIdentities {
		identities[k] = v
	}
	roles := make(map[model.Identity]model.RoleRules, len(identity.DefaultRoles))
	for k, v := range identity.DefaultRoles {
		roles[k] = model.RoleRules{
			ForbiddenPaths: append([]string{}, v.ForbiddenPaths...),
			CanMerge:       v.CanMerge,
		}
	}
	return &Config{
		Identities: identities,
		Roles:      roles,
		Cache: CacheConfig{
			Backend:        cache.BackendFile,
			TTLSeconds:     model.DefaultTTLSeconds,
			RedisAddr:      "localhost:6379",
			RedisRetention: cache.DefaultRedisRetention,
		},
		Telemetry: TelemetryConfig{
			Timeout: telemetry.DefaultTimeout,
			Redact:  true,
		},
	}
}

// DefaultPath returns ~/.hookwarden/config.yaml, or "" without a home dir.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".hookwarden", "config.yaml")
}

// Load reads configuration from path (DefaultPath when empty), then applies
// .env and HOOKWARDEN_* overrides and validates the result. A missing file
// yields defaults. The YAML overwrites only the fields it names.
func Load(path string) (*Config, error) {
	// .env never overrides variables already set.
	_ = godotenv.Load(".env")

	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays HOOKWARDEN_* variables read through getenv.
func (c *Config) applyEnv(getenv func(string) string) {
	get := func(name string) (string, bool) {
		v := strings.TrimSpace(getenv(EnvPrefix + name))
		return v, v != ""
	}

	if v, ok := get("CACHE_BACKEND"); ok {
		c.Cache.Backend = v
	}
	if v, ok := get("CACHE_DIR"); ok {
		c.Cache.Dir = v
	}
	if v, ok := get("CACHE_TTL"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.TTLSeconds = n
		}
	}
	if v, ok := get("REDIS_ADDR"); ok {
		c.Cache.RedisAddr = v
	}
	if v, ok := get("SQLITE_PATH"); ok {
		c.Cache.SQLitePath = v
	}
	if v, ok := get("TELEMETRY_URL"); ok {
		c.Telemetry.Endpoint = v
	}
	if v, ok := get("AGENT_ID"); ok {
		c.Telemetry.AgentID = v
	}
	if v, ok := get("CONTAINER_ID"); ok {
		c.Telemetry.ContainerID = v
	}
	if v, ok := get("PROJECT_ROOT"); ok {
		c.ProjectRoot = v
	}
	if v, ok := get("DEFAULT_AGENT"); ok {
		c.DefaultAgent = v
	}
	if v, ok := get("AUDIT_LOG"); ok {
		c.AuditLog = v
	}
	if v, ok := get("ALLOWED_PATHS"); ok {
		c.Restrictions.AllowedPaths = restrict.ParsePatterns(v)
	}
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := redact.New(c.Telemetry.RedactPatterns); err != nil {
		return fmt.Errorf("invalid config: telemetry.redact_patterns: %w", err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port", field)
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "required":
		return fmt.Sprintf("%s is required", field)
	default:
		return fmt.Sprintf("%s failed %q", field, fe.Tag())
	}
}

// CacheOptions returns the store options for cache.Open.
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		Backend:        c.Cache.Backend,
		Dir:            c.Cache.Dir,
		RedisAddr:      c.Cache.RedisAddr,
		RedisRetention: c.Cache.RedisRetention,
		SQLitePath:     c.Cache.SQLitePath,
	}
}

// TelemetryOptions returns the telemetry client settings. Invalid operator
// patterns fall back to the built-in redaction rules.
func (c *Config) TelemetryOptions() telemetry.Config {
	opts := telemetry.Config{
		Endpoint:    c.Telemetry.Endpoint,
		AgentID:     c.Telemetry.AgentID,
		ContainerID: c.Telemetry.ContainerID,
		Timeout:     c.Telemetry.Timeout,
	}
	if c.Telemetry.Redact {
		r, err := redact.New(c.Telemetry.RedactPatterns)
		if err != nil {
			r, _ = redact.New(nil)
		}
		opts.Redactor = r
	}
	return opts
}

// Resolver builds an identity resolver from the configured tables.
func (c *Config) Resolver(source identity.EmailSource) *identity.Resolver {
	return identity.NewResolver(c.Identities, c.Roles, source)
}
