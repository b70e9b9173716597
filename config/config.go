package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/upb/todo-backend/authorizer"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Authorizer    AuthorizerConfig
	Redis         RedisConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthorizerConfig holds bearer-token verification configuration
type AuthorizerConfig struct {
	JWKSURL            string // signing-key directory endpoint
	Algorithm          string
	Issuer             string // optional
	Audience           string // optional
	Leeway             time.Duration
	FetchTimeout       time.Duration
	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheStaleGrace    time.Duration
	MinRefreshInterval time.Duration
}

// RedisConfig holds the optional shared directory cache configuration
type RedisConfig struct {
	URL string // empty disables the shared tier
	Key string
}

// StorageConfig holds attachment storage configuration
type StorageConfig struct {
	Bucket              string
	Region              string
	Endpoint            string // optional, for S3-compatible stores
	SignedURLExpiration time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database:      loadDatabaseConfig(),
		Authorizer:    loadAuthorizerConfig(),
		Redis:         loadRedisConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// NewAuthorizer loads only the sections the Lambda authorizer needs
func NewAuthorizer(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		Authorizer:    loadAuthorizerConfig(),
		Redis:         loadRedisConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.validateAuthorizer(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Observability.LogLevel == "" {
		return nil, fmt.Errorf("config validation failed: log level is required")
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if err := c.validateAuthorizer(); err != nil {
		return err
	}

	if c.IsProduction() && c.Storage.Bucket == "" {
		return fmt.Errorf("attachment bucket is required in production")
	}
	if c.Storage.SignedURLExpiration <= 0 {
		return fmt.Errorf("signed URL expiration must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

func (c *Config) validateAuthorizer() error {
	a := c.Authorizer
	if a.JWKSURL == "" {
		return fmt.Errorf("AUTH_JWKS_URL is required")
	}
	u, err := url.Parse(a.JWKSURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("AUTH_JWKS_URL must be an absolute URL")
	}
	if u.Scheme != "https" && (c.IsProduction() || u.Scheme != "http") {
		return fmt.Errorf("AUTH_JWKS_URL must use https")
	}
	if !authorizer.IsSupportedAlgorithm(a.Algorithm) {
		return fmt.Errorf("unsupported AUTH_ALGORITHM %q", a.Algorithm)
	}
	if a.Leeway < 0 {
		return fmt.Errorf("AUTH_LEEWAY must not be negative")
	}
	if a.FetchTimeout <= 0 {
		return fmt.Errorf("AUTH_FETCH_TIMEOUT must be positive")
	}
	if a.CacheEnabled && a.CacheTTL <= 0 {
		return fmt.Errorf("AUTH_CACHE_TTL must be positive when the cache is enabled")
	}
	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// VerifierConfig returns the token verification settings
func (c *AuthorizerConfig) VerifierConfig() authorizer.VerifierConfig {
	return authorizer.VerifierConfig{
		Algorithm: c.Algorithm,
		Leeway:    c.Leeway,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
	}
}

// CacheConfig returns the directory cache settings
func (c *AuthorizerConfig) CacheConfig() authorizer.DirectoryCacheConfig {
	return authorizer.DirectoryCacheConfig{
		TTL:                c.CacheTTL,
		StaleGrace:         c.CacheStaleGrace,
		MinRefreshInterval: c.MinRefreshInterval,
		RefreshTimeout:     c.FetchTimeout,
	}
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	dbURL := getEnv("DATABASE_URL", "")
	if dbURL != "" {
		return DatabaseConfig{
			ConnectionString: dbURL,
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		}
	}
	return DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            getEnvAsInt("DB_PORT", 5432),
		User:            getEnv("DB_USER", "dev"),
		Password:        getEnv("DB_PASSWORD", ""),
		Database:        getEnv("DB_NAME", "todos"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

func loadAuthorizerConfig() AuthorizerConfig {
	return AuthorizerConfig{
		JWKSURL:            getEnv("AUTH_JWKS_URL", ""),
		Algorithm:          getEnv("AUTH_ALGORITHM", authorizer.DefaultAlgorithm),
		Issuer:             getEnv("AUTH_ISSUER", ""),
		Audience:           getEnv("AUTH_AUDIENCE", ""),
		Leeway:             getEnvAsDuration("AUTH_LEEWAY", 0),
		FetchTimeout:       getEnvAsDuration("AUTH_FETCH_TIMEOUT", authorizer.DefaultFetchTimeout),
		CacheEnabled:       getEnvAsBool("AUTH_CACHE_ENABLED", true),
		CacheTTL:           getEnvAsDuration("AUTH_CACHE_TTL", 10*time.Minute),
		CacheStaleGrace:    getEnvAsDuration("AUTH_CACHE_STALE_GRACE", 5*time.Minute),
		MinRefreshInterval: getEnvAsDuration("AUTH_MIN_REFRESH_INTERVAL", 30*time.Second),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		URL: getEnv("REDIS_URL", ""),
		Key: getEnv("REDIS_JWKS_KEY", "todo:authorizer:jwks"),
	}
}

// loadStorageConfig reads SIGNED_URL_EXPIRATION as seconds, or as a Go duration
func loadStorageConfig() StorageConfig {
	expiration := getEnvAsDuration("SIGNED_URL_EXPIRATION", 300*time.Second)
	if secs := getEnvAsInt("SIGNED_URL_EXPIRATION", 0); secs > 0 {
		expiration = time.Duration(secs) * time.Second
	}

	return StorageConfig{
		Bucket:              getEnv("ATTACHMENT_S3_BUCKET", ""),
		Region:              getEnv("AWS_REGION", "us-east-1"),
		Endpoint:            getEnv("S3_ENDPOINT", ""),
		SignedURLExpiration: expiration,
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8080
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
