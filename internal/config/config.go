package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Receipt   ReceiptConfig   `mapstructure:"receipt"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Admin     AdminConfig     `mapstructure:"admin"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// PublicURL is the portal address used in links sent to applicants
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// StoreConfig selects the application store backend
type StoreConfig struct {
	Backend string `mapstructure:"backend"` // memory or sql
}

// ReceiptConfig controls receipt numbering
type ReceiptConfig struct {
	// Timezone decides which calendar day a receipt belongs to
	Timezone string `mapstructure:"timezone"`
}

// CacheConfig selects the application cache backend
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // memory, redis or none
	TTL      time.Duration `mapstructure:"ttl"`
	Schedule string        `mapstructure:"janitor_schedule"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AdminConfig holds the console account and token settings
type AdminConfig struct {
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

// RateLimitConfig throttles public endpoints per client IP
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// UploadConfig holds attachment upload settings
type UploadConfig struct {
	Dir          string   `mapstructure:"dir"`
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// NotifyConfig holds notification channel settings
type NotifyConfig struct {
	Email EmailConfig `mapstructure:"email"`
	SMS   SMSConfig   `mapstructure:"sms"`
	Lark  LarkConfig  `mapstructure:"lark"`
}

// EmailConfig holds SMTP settings
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	FromName string `mapstructure:"from_name"`
}

// SMSConfig holds Solapi settings
type SMSConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
	From      string        `mapstructure:"from"`
	Subject   string        `mapstructure:"subject"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	ChatID    string `mapstructure:"chat_id"`
	BaseURL   string `mapstructure:"base_url"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// MetricsConfig toggles the /metrics endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from an optional YAML file, a .env file next to
// the working directory and the environment, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv exports variables from path without overriding the real environment
func loadDotEnv(path string) error {
	err := gotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.public_url", "http://localhost:8080/status")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/access-portal.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("store.backend", "sql")
	v.SetDefault("receipt.timezone", "Asia/Seoul")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("cache.janitor_schedule", "@every 10m")
	v.SetDefault("cache.redis.addr", "localhost:6379")

	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.token_ttl", 24*time.Hour)

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 1.0)
	v.SetDefault("ratelimit.burst", 10)

	v.SetDefault("upload.dir", "data/uploads")
	v.SetDefault("upload.max_size", 10<<20)

	v.SetDefault("notify.email.port", 587)
	v.SetDefault("notify.email.from_name", "보령LNG터미널")
	v.SetDefault("notify.sms.subject", "[보령LNG터미널]")
	v.SetDefault("notify.sms.timeout", 10*time.Second)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// bindEnvVars binds secrets to their conventional environment names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"admin.password_hash":    "ADMIN_PASSWORD_HASH",
		"admin.jwt_secret":       "JWT_SECRET",
		"database.dsn":           "DATABASE_DSN",
		"cache.redis.addr":       "REDIS_ADDR",
		"cache.redis.password":   "REDIS_PASSWORD",
		"notify.email.password":  "SMTP_PASSWORD",
		"notify.sms.api_key":     "SOLAPI_API_KEY",
		"notify.sms.api_secret":  "SOLAPI_API_SECRET",
		"notify.sms.from":        "SOLAPI_FROM",
		"notify.lark.app_id":     "LARK_APP_ID",
		"notify.lark.app_secret": "LARK_APP_SECRET",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Store.Backend {
	case "memory":
	case "sql":
		switch c.Database.Driver {
		case "sqlite3":
			if c.Database.Path == "" {
				return fmt.Errorf("database.path is required for sqlite3")
			}
		case "postgres":
			if c.Database.DSN == "" {
				return fmt.Errorf("database.dsn is required for postgres")
			}
		default:
			return fmt.Errorf("database.driver must be sqlite3 or postgres, got %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("store.backend must be memory or sql, got %q", c.Store.Backend)
	}

	if _, err := time.LoadLocation(c.Receipt.Timezone); err != nil {
		return fmt.Errorf("receipt.timezone: %w", err)
	}

	switch c.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	if c.Admin.Username == "" {
		return fmt.Errorf("admin.username is required")
	}
	if c.Admin.PasswordHash == "" {
		return fmt.Errorf("admin.password_hash is required")
	}
	if len(c.Admin.JWTSecret) < 16 {
		return fmt.Errorf("admin.jwt_secret must be at least 16 characters")
	}

	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("ratelimit.requests_per_second and ratelimit.burst must be positive")
	}

	if c.Upload.Dir == "" {
		return fmt.Errorf("upload.dir is required")
	}
	if c.Upload.MaxSize <= 0 {
		return fmt.Errorf("upload.max_size must be positive")
	}

	if e := c.Notify.Email; e.Enabled && (e.Host == "" || e.From == "") {
		return fmt.Errorf("notify.email.host and notify.email.from are required when email is enabled")
	}
	if s := c.Notify.SMS; s.Enabled && (s.APIKey == "" || s.APISecret == "" || s.From == "") {
		return fmt.Errorf("notify.sms api_key, api_secret and from are required when sms is enabled")
	}
	if l := c.Notify.Lark; l.Enabled && (l.AppID == "" || l.AppSecret == "" || l.ChatID == "") {
		return fmt.Errorf("notify.lark app_id, app_secret and chat_id are required when lark is enabled")
	}

	return nil
}

// Location returns the receipt timezone. Validate has already checked it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Receipt.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
