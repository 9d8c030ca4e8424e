package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all gateway configuration. Loaded once at startup,
// immutable thereafter.
type Config struct {
	Server        ServerConfig
	API           APIConfig
	Identity      IdentityConfig
	Tenant        TenantConfig
	Session       SessionConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	RateLimit     RateLimitConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// StaticDir holds the built front-end assets served by the SPA
	// fallback handler.
	StaticDir string
}

// APIConfig holds upstream engagement API configuration
type APIConfig struct {
	BaseURL string
}

// IdentityConfig holds OIDC identity provider configuration
type IdentityConfig struct {
	BaseURL         string
	Realm           string
	ClientID        string
	RedirectURI     string
	RefreshInterval time.Duration
	MinValidity     time.Duration
}

// TenantConfig holds tenant resolution configuration
type TenantConfig struct {
	// DefaultSlug is the single-tenant fallback; empty means
	// multi-tenant.
	DefaultSlug     string
	DefaultLanguage string
	CacheTTL        time.Duration
}

// SessionConfig holds session and client-state cookie configuration
type SessionConfig struct {
	CookieName     string
	CookieDomain   string
	CookiePath     string
	CookieSecure   bool
	CookieHTTPOnly bool
	CookieSameSite string
	Lifetime       time.Duration

	// Secret is the master secret cookie-signing keys are derived from.
	Secret string

	// Store selects the session backend: postgres, redis, or memory.
	Store string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds redis configuration for the alternate session store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			StaticDir:    getEnv("SERVER_STATIC_DIR", "./static"),
		},
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:5000"),
		},
		Identity: IdentityConfig{
			BaseURL:         getEnv("IDP_BASE_URL", ""),
			Realm:           getEnv("IDP_REALM", "met"),
			ClientID:        getEnv("IDP_CLIENT_ID", "met-web"),
			RedirectURI:     getEnv("IDP_REDIRECT_URI", ""),
			RefreshInterval: parseDuration("IDP_REFRESH_INTERVAL", "60s"),
			MinValidity:     parseDuration("IDP_MIN_VALIDITY", "300s"),
		},
		Tenant: TenantConfig{
			DefaultSlug:     getEnv("TENANT_DEFAULT_SLUG", ""),
			DefaultLanguage: getEnv("TENANT_DEFAULT_LANGUAGE", "en"),
			CacheTTL:        parseDuration("TENANT_CACHE_TTL", "1h"),
		},
		Session: SessionConfig{
			CookieName:     getEnv("SESSION_COOKIE_NAME", "met_session"),
			CookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookiePath:     getEnv("SESSION_COOKIE_PATH", "/"),
			CookieSecure:   parseBool("SESSION_COOKIE_SECURE", true),
			CookieHTTPOnly: parseBool("SESSION_COOKIE_HTTP_ONLY", true),
			CookieSameSite: getEnv("SESSION_COOKIE_SAME_SITE", "Lax"),
			Lifetime:       parseDuration("SESSION_LIFETIME", "24h"),
			Secret:         getEnv("SESSION_SECRET", ""),
			Store:          getEnv("SESSION_STORE", "postgres"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "met"),
			Password:     getEnv("DB_PASSWORD", ""),
			Database:     getEnv("DB_NAME", "met_gateway"),
			SSLMode:      getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns: parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: parseInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "met-gateway"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: float64(parseInt("RATELIMIT_RPS", 10)),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Identity.BaseURL == "" {
		return fmt.Errorf("IDP_BASE_URL is required")
	}
	if c.Identity.RedirectURI == "" {
		return fmt.Errorf("IDP_REDIRECT_URI is required")
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.Session.Store == "postgres" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when SESSION_STORE=postgres")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
