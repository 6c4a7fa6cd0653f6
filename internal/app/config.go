package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// minSecretLen is the shortest accepted JWT signing secret.
const minSecretLen = 32

// Config holds the complete application configuration, loadable from
// environment variables (GALA_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (GALA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Migrate     bool   `default:"true" usage:"Apply the embedded schema on startup"`
	JWT         JWTConfig
	Orders      OrdersConfig
	RateLimit   RateLimitConfig
	Graceful    GracefulConfig
}

// JWTConfig controls session token issuance.
type JWTConfig struct {
	Secret string        `usage:"HS256 signing secret, at least 32 bytes (GALA_JWT_SECRET)" flag:"jwt-secret"`
	Issuer string        `default:"gala-storefront" usage:"Token issuer claim"`
	TTL    time.Duration `default:"12h" usage:"Session lifetime"`
}

// OrdersConfig controls the order history endpoint.
type OrdersConfig struct {
	MaxListLimit int `default:"200" usage:"Largest accepted limit for order history" flag:"orders-max-limit"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "GALA",
		Files:     []string{"config.yaml", "/etc/gala/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports missing or unusable settings.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set GALA_DATABASE_URL or DATABASE_URL")
	}
	if len(c.JWT.Secret) < minSecretLen {
		return errors.Errorf("jwt secret must be at least %d bytes: set GALA_JWT_SECRET", minSecretLen)
	}
	if c.JWT.TTL <= 0 {
		return errors.Errorf("invalid jwt ttl %s", c.JWT.TTL)
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's GALA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
