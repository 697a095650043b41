package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "dev"
	EnvProduction  = "prod"

	TokenFormatJWT    = "jwt"
	TokenFormatPaseto = "paseto"

	minCookieSecretLen = 32
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Email     EmailConfig
}

type ServerConfig struct {
	Port            string        `env:"SERVER_PORT" envDefault:"8080"`
	Env             string        `env:"APP_ENV" envDefault:"dev"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	TrustedOrigins  []string      `env:"TRUSTED_ORIGINS" envDefault:"http://localhost:3000"`
}

type DatabaseConfig struct {
	Host           string `env:"DB_HOST" envDefault:"localhost"`
	Port           string `env:"DB_PORT" envDefault:"5432"`
	User           string `env:"DB_USER" envDefault:"postgres"`
	Password       string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"contacts"`
	SSLMode        string `env:"DB_SSLMODE" envDefault:"disable"`
	ChannelBinding string `env:"DB_CHANNEL_BINDING"`
	MaxOpenConns   int    `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns   int    `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	AutoMigrate    bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type RateLimitConfig struct {
	Enabled             bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	Window              time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RegisterLimit       int           `env:"RATE_LIMIT_REGISTER" envDefault:"5"`
	LoginLimit          int           `env:"RATE_LIMIT_LOGIN" envDefault:"10"`
	ForgotPasswordLimit int           `env:"RATE_LIMIT_FORGOT_PASSWORD" envDefault:"3"`
	EmailCooldown       time.Duration `env:"RATE_LIMIT_EMAIL_COOLDOWN" envDefault:"1m"`
}

type AuthConfig struct {
	AccessTokenSecret  string        `env:"JWT_ACCESS_TOKEN_SECRET,required,notEmpty"`
	RefreshTokenSecret string        `env:"JWT_REFRESH_TOKEN_SECRET,required,notEmpty"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"2m"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL" envDefault:"30s"`
	TokenFormat        string        `env:"TOKEN_FORMAT" envDefault:"jwt"`
	CookieSecret       string        `env:"COOKIE_SECRET,required,notEmpty"`
	// TestMode makes every generated verification and reset token the fixed
	// value "secret". Refused in production.
	TestMode bool `env:"AUTH_TEST_MODE" envDefault:"false"`
}

type EmailConfig struct {
	SMTPHost       string        `env:"SMTP_HOST"`
	SMTPPort       string        `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser       string        `env:"SMTP_USER"`
	SMTPPassword   string        `env:"SMTP_PASS"`
	From           string        `env:"SMTP_FROM" envDefault:"no-reply@contacts.local"`
	FrontendOrigin string        `env:"FRONTEND_ORIGIN" envDefault:"http://localhost:3000"`
	SendTimeout    time.Duration `env:"EMAIL_SEND_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from a .env file (if present) and the environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return Parse()
}

// Parse reads configuration from the environment only and validates it
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules env tags cannot express
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Env != EnvDevelopment && c.Server.Env != EnvProduction {
		errs = append(errs, fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Server.Env))
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		errs = append(errs, errors.New("JWT_ACCESS_TOKEN_SECRET and JWT_REFRESH_TOKEN_SECRET must differ"))
	}
	if len(c.Auth.CookieSecret) < minCookieSecretLen {
		errs = append(errs, fmt.Errorf("COOKIE_SECRET must be at least %d bytes, got %d", minCookieSecretLen, len(c.Auth.CookieSecret)))
	}
	if c.Auth.TokenFormat != TokenFormatJWT && c.Auth.TokenFormat != TokenFormatPaseto {
		errs = append(errs, fmt.Errorf("TOKEN_FORMAT must be %q or %q, got %q", TokenFormatJWT, TokenFormatPaseto, c.Auth.TokenFormat))
	}
	if c.Auth.TestMode && c.Server.Env == EnvProduction {
		errs = append(errs, errors.New("AUTH_TEST_MODE cannot be enabled when APP_ENV=prod"))
	}
	for name, d := range map[string]time.Duration{
		"ACCESS_TOKEN_TTL":  c.Auth.AccessTokenTTL,
		"REFRESH_TOKEN_TTL": c.Auth.RefreshTokenTTL,
		"RESET_TOKEN_TTL":   c.Auth.ResetTokenTTL,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	return errors.Join(errs...)
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if the environment is set to prod
func (c *ServerConfig) IsProduction() bool {
	return c.Env == EnvProduction
}
