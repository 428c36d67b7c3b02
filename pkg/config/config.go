package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/cmsadmin/pkg/audit"
	"github.com/platinummonkey/cmsadmin/pkg/auth"
	"github.com/platinummonkey/cmsadmin/pkg/httputil"
	"github.com/platinummonkey/cmsadmin/pkg/middleware"
	"github.com/platinummonkey/cmsadmin/pkg/observability"
	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// EnvConfigFile names the environment variable holding an optional YAML file path
const EnvConfigFile = "CMSADMIN_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Session and password settings
	Auth AuthConfig `yaml:"auth"`

	// Initial super admin
	Bootstrap auth.BootstrapConfig `yaml:"bootstrap"`

	// Login rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Redis, shared by the login limiter and the health check
	Redis RedisConfig `yaml:"redis"`

	// Audit archive destination
	Archive audit.S3Config `yaml:"archive"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// SecureCookies marks the session cookie Secure; disable only for plain-HTTP development
	SecureCookies bool `yaml:"secure_cookies"`

	// TrustedProxies lists CIDRs or addresses whose forwarding headers are honoured
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// AuthConfig holds session and password hashing settings
type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`
	// BcryptCost of zero selects bcrypt.DefaultCost
	BcryptCost int `yaml:"bcrypt_cost"`
}

// RateLimitConfig selects and sizes the login limiter
type RateLimitConfig struct {
	// Backend is "memory" or "redis"
	Backend                         string `yaml:"backend"`
	middleware.LoginRateLimitConfig `yaml:",inline"`
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// OTel converts the settings for observability.InitOTel
func (c ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        c.OTelEnabled,
		Endpoint:       c.OTelEndpoint,
		ServiceName:    c.OTelServiceName,
		ServiceVersion: c.OTelServiceVersion,
		Insecure:       c.OTelInsecure,
	}
}

// Default returns the configuration used before any file or environment override
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			SecureCookies:   true,
		},
		Storage: storage.DefaultConfig(),
		Bootstrap: auth.BootstrapConfig{
			Username: "admin",
			Email:    "admin@localhost",
			Name:     "Administrator",
		},
		RateLimit: RateLimitConfig{
			Backend:              "memory",
			LoginRateLimitConfig: middleware.DefaultLoginRateLimitConfig(),
		},
		Archive: audit.S3Config{
			Region: "us-east-1",
			Prefix: "cmsadmin/admin-logs",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "cmsadmin",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig loads defaults, then the YAML file named by CMSADMIN_CONFIG_FILE
// if set, then environment variables, and validates the result
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(EnvConfigFile))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides every setting that has a CMSADMIN_* variable set
func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("CMSADMIN_HOST", s.Host)
	s.Port = getEnv("CMSADMIN_PORT", s.Port)
	s.ReadTimeout = getEnvDuration("CMSADMIN_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("CMSADMIN_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("CMSADMIN_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("CMSADMIN_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("CMSADMIN_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.SecureCookies = getEnvBool("CMSADMIN_SECURE_COOKIES", s.SecureCookies)
	s.TrustedProxies = getEnvList("CMSADMIN_TRUSTED_PROXIES", s.TrustedProxies)

	st := &c.Storage
	st.Driver = getEnv("CMSADMIN_STORAGE_DRIVER", st.Driver)
	st.DSN = getEnv("CMSADMIN_STORAGE_DSN", st.DSN)
	st.MaxOpenConns = getEnvInt("CMSADMIN_STORAGE_MAX_OPEN_CONNS", st.MaxOpenConns)
	st.MaxIdleConns = getEnvInt("CMSADMIN_STORAGE_MAX_IDLE_CONNS", st.MaxIdleConns)
	st.ConnMaxLifetime = getEnvDuration("CMSADMIN_STORAGE_CONN_MAX_LIFETIME", st.ConnMaxLifetime)
	st.ConnectTimeout = getEnvDuration("CMSADMIN_STORAGE_CONNECT_TIMEOUT", st.ConnectTimeout)

	c.Auth.SessionSecret = getEnv("CMSADMIN_SESSION_SECRET", c.Auth.SessionSecret)
	c.Auth.BcryptCost = getEnvInt("CMSADMIN_BCRYPT_COST", c.Auth.BcryptCost)

	b := &c.Bootstrap
	b.Username = getEnv("CMSADMIN_BOOTSTRAP_USERNAME", b.Username)
	b.Email = getEnv("CMSADMIN_BOOTSTRAP_EMAIL", b.Email)
	b.Password = getEnv("CMSADMIN_BOOTSTRAP_PASSWORD", b.Password)
	b.Name = getEnv("CMSADMIN_BOOTSTRAP_NAME", b.Name)

	rl := &c.RateLimit
	rl.Backend = getEnv("CMSADMIN_RATE_LIMIT_BACKEND", rl.Backend)
	rl.MaxAttempts = getEnvInt("CMSADMIN_RATE_LIMIT_MAX_ATTEMPTS", rl.MaxAttempts)
	rl.Window = getEnvDuration("CMSADMIN_RATE_LIMIT_WINDOW", rl.Window)
	rl.MaxKeys = getEnvInt("CMSADMIN_RATE_LIMIT_MAX_KEYS", rl.MaxKeys)

	c.Redis.URL = getEnv("CMSADMIN_REDIS_URL", c.Redis.URL)
	c.Redis.Password = getEnv("CMSADMIN_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("CMSADMIN_REDIS_DB", c.Redis.DB)

	a := &c.Archive
	a.Bucket = getEnv("CMSADMIN_ARCHIVE_BUCKET", a.Bucket)
	a.Prefix = getEnv("CMSADMIN_ARCHIVE_PREFIX", a.Prefix)
	a.Region = getEnv("CMSADMIN_ARCHIVE_REGION", a.Region)
	a.Endpoint = getEnv("CMSADMIN_ARCHIVE_ENDPOINT", a.Endpoint)
	a.AccessKey = getEnv("CMSADMIN_ARCHIVE_ACCESS_KEY", a.AccessKey)
	a.SecretKey = getEnv("CMSADMIN_ARCHIVE_SECRET_KEY", a.SecretKey)
	a.UsePathStyle = getEnvBool("CMSADMIN_ARCHIVE_USE_PATH_STYLE", a.UsePathStyle)

	o := &c.Observability
	o.LogLevel = getEnv("CMSADMIN_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("CMSADMIN_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("CMSADMIN_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("CMSADMIN_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("CMSADMIN_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("CMSADMIN_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("CMSADMIN_OTEL_INSECURE", o.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if _, err := httputil.NewClientIPResolver(c.Server.TrustedProxies); err != nil {
		return err
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage DSN is required for %s storage", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory, sqlite, or postgres)", c.Storage.Driver)
	}

	if len(c.Auth.SessionSecret) < auth.MinSessionSecretBytes {
		return fmt.Errorf("session secret must be at least %d bytes", auth.MinSessionSecretBytes)
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}

	if c.Bootstrap.Password != "" {
		if c.Bootstrap.Username == "" || c.Bootstrap.Email == "" {
			return fmt.Errorf("bootstrap username and email are required when a bootstrap password is set")
		}
		if len(c.Bootstrap.Password) < auth.MinPasswordLength || len(c.Bootstrap.Password) > auth.MaxPasswordBytes {
			return fmt.Errorf("bootstrap password must be between %d and %d bytes", auth.MinPasswordLength, auth.MaxPasswordBytes)
		}
	}

	switch c.RateLimit.Backend {
	case "memory":
	case "redis":
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis rate limit backend")
		}
	default:
		return fmt.Errorf("invalid rate limit backend: %s (must be memory or redis)", c.RateLimit.Backend)
	}
	if c.RateLimit.MaxAttempts <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit max attempts and window must be positive")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvList returns a comma separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
