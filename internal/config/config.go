// Package config provides application configuration management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage backends.
const (
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Session cache backends.
const (
	CacheNone   = "none"
	CacheRedis  = "redis"
	CacheMemory = "memory"
)

// EnvPrefix is the environment variable prefix for the daemon.
const EnvPrefix = "KEYRINGD"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	KDF       KDFConfig
	Security  SecurityConfig
	RateLimit RateLimitConfig
	MCP       MCPConfig
	Audit     AuditConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// StorageConfig selects the vault log backend.
type StorageConfig struct {
	Backend  string
	BoltPath string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	MaxRetries   int
	PoolSize     int
	MinIdleConns int
}

// SessionConfig holds the session lifecycle settings.
type SessionConfig struct {
	Cache            string
	CacheTTL         time.Duration
	KeyringIdleLimit time.Duration
	OutsideIdleLimit time.Duration
	AutolockInterval time.Duration
}

// KDFConfig holds the Argon2id cost parameters.
type KDFConfig struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	APIToken           string
	Environment        string
	LogLevel           string
	MaxRequestBodySize int64
}

// RateLimitConfig holds rate limiting settings for unlock attempts.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// MCPConfig holds MCP server settings.
type MCPConfig struct {
	PolicyPath string
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	Retention       time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := FromViper(v)

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Server = ServerConfig{
		Host:           v.GetString("server.host"),
		Port:           v.GetInt("server.port"),
		ReadTimeout:    v.GetDuration("server.read_timeout"),
		WriteTimeout:   v.GetDuration("server.write_timeout"),
		IdleTimeout:    v.GetDuration("server.idle_timeout"),
		RequestTimeout: v.GetDuration("server.request_timeout"),
	}

	cfg.Storage = StorageConfig{
		Backend:  v.GetString("storage.backend"),
		BoltPath: v.GetString("storage.bolt_path"),
	}

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("storage.postgres_url"),
		MaxOpenConns:    v.GetInt("database.max_open_conns"),
		MaxIdleConns:    v.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
	}

	cfg.Redis = RedisConfig{
		URL:          v.GetString("redis.url"),
		MaxRetries:   v.GetInt("redis.max_retries"),
		PoolSize:     v.GetInt("redis.pool_size"),
		MinIdleConns: v.GetInt("redis.min_idle_conns"),
	}

	cfg.Session = SessionConfig{
		Cache:            v.GetString("session.cache"),
		CacheTTL:         v.GetDuration("session.cache_ttl"),
		KeyringIdleLimit: v.GetDuration("session.keyring_idle_limit"),
		OutsideIdleLimit: v.GetDuration("session.outside_idle_limit"),
		AutolockInterval: v.GetDuration("session.autolock_interval"),
	}

	cfg.KDF = KDFConfig{
		Time:    v.GetUint32("kdf.time"),
		Memory:  v.GetUint32("kdf.memory"),
		Threads: uint8(v.GetUint("kdf.threads")),
	}

	cfg.Security = SecurityConfig{
		APIToken:           v.GetString("security.api_token"),
		Environment:        v.GetString("env"),
		LogLevel:           v.GetString("log.level"),
		MaxRequestBodySize: v.GetInt64("security.max_request_body_size"),
	}

	cfg.RateLimit = RateLimitConfig{
		Requests: v.GetInt("rate_limit.requests"),
		Window:   v.GetDuration("rate_limit.window"),
	}

	cfg.MCP = MCPConfig{
		PolicyPath: v.GetString("mcp.policy_path"),
	}

	cfg.Audit = AuditConfig{
		Retention:       v.GetDuration("audit.retention"),
		CleanupInterval: v.GetDuration("audit.cleanup_interval"),
	}

	return cfg
}

// SetDefaults configures default values on v.
func SetDefaults(v *viper.Viper) { setDefaults(v) }

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8420)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 0) // SSE streams stay open
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)

	// Storage defaults
	v.SetDefault("storage.backend", BackendBolt)
	v.SetDefault("storage.bolt_path", "keyring.db")
	v.SetDefault("storage.postgres_url", "")

	// Database defaults
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.conn_max_idle_time", 5*time.Minute)

	// Redis defaults
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	// Session defaults
	v.SetDefault("session.cache", CacheNone)
	v.SetDefault("session.cache_ttl", 30*time.Minute)
	v.SetDefault("session.keyring_idle_limit", 30*time.Minute)
	v.SetDefault("session.outside_idle_limit", 30*time.Minute)
	v.SetDefault("session.autolock_interval", 1*time.Minute)

	// KDF defaults (Argon2id, OWASP second recommendation)
	v.SetDefault("kdf.time", 3)
	v.SetDefault("kdf.memory", 64*1024)
	v.SetDefault("kdf.threads", 4)

	// Security defaults
	v.SetDefault("env", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("security.api_token", "")
	v.SetDefault("security.max_request_body_size", 1*1024*1024) // 1MB

	// Rate limiting defaults
	v.SetDefault("rate_limit.requests", 10)
	v.SetDefault("rate_limit.window", 60*time.Second)

	v.SetDefault("mcp.policy_path", "")

	// Audit defaults
	v.SetDefault("audit.retention", 30*24*time.Hour)
	v.SetDefault("audit.cleanup_interval", 1*time.Hour)
}

// Validate checks that all required configuration is present.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBolt:
		if c.Storage.BoltPath == "" {
			return errors.New("storage.bolt_path is required for the bolt backend")
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			return errors.New("storage.postgres_url is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Session.Cache {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Redis.URL == "" {
			return errors.New("redis.url is required for the redis session cache")
		}
	default:
		return fmt.Errorf("unknown session cache %q", c.Session.Cache)
	}

	if c.Session.KeyringIdleLimit <= 0 || c.Session.OutsideIdleLimit <= 0 {
		return errors.New("session idle limits must be positive")
	}
	if c.Session.AutolockInterval <= 0 {
		return errors.New("session.autolock_interval must be positive")
	}
	if c.KDF.Time == 0 || c.KDF.Memory == 0 || c.KDF.Threads == 0 {
		return errors.New("kdf parameters must be positive")
	}

	if c.Audit.Retention <= 0 || c.Audit.CleanupInterval <= 0 {
		return errors.New("audit retention and cleanup interval must be positive")
	}

	if c.IsProduction() && c.Security.APIToken == "" {
		return errors.New("security.api_token is required in production")
	}

	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Security.Environment == "production"
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Security.Environment == "development"
}

// ServerAddr returns the full server address.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
