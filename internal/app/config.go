package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (MISHRAMART_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (MISHRAMART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL     string `usage:"Redis URL for the catalog cache (MISHRAMART_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	ImageBaseURL string `default:"" usage:"Base URL for product images (e.g. https://cdn.example.com/images)" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key and session token hashing" flag:"api-key-pepper"`
	Pricing      PricingConfig
	Kafka        KafkaConfig
	Razorpay     RazorpayConfig
	Catalog      CatalogConfig
	RateLimit    RateLimitConfig
	CouponLimit  CouponLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig fixes the amount breakdown constants at start-up.
type PricingConfig struct {
	DeliveryFee string `default:"50"   usage:"Flat delivery fee for a non-empty cart" flag:"delivery-fee"`
	TaxRate     string `default:"0.18" usage:"Tax rate applied to the subtotal" flag:"tax-rate"`
}

// KafkaConfig selects where order events are published. Without brokers
// events are discarded.
type KafkaConfig struct {
	Brokers string `default:"" usage:"Comma separated Kafka brokers"`
	Topic   string `default:"mishramart.orders" usage:"Order events topic"`
}

// RazorpayConfig holds payment gateway credentials. Without a key id online
// payments are disabled.
type RazorpayConfig struct {
	KeyID     string        `default:"" usage:"Razorpay key id" flag:"razorpay-key-id"`
	KeySecret string        `default:"" usage:"Razorpay key secret" flag:"razorpay-key-secret"`
	Currency  string        `default:"INR" usage:"Gateway order currency"`
	Timeout   time.Duration `default:"15s" usage:"Gateway request timeout"`
	// Consecutive gateway failures that stop online checkout for Cooldown.
	BreakerFailures int           `default:"5" usage:"Gateway failures before online checkout is paused"`
	BreakerCooldown time.Duration `default:"30s" usage:"How long online checkout stays paused"`
}

// CatalogConfig controls the Redis product list cache.
type CatalogConfig struct {
	CacheTTL time.Duration `default:"5m" usage:"Product list cache lifetime" flag:"catalog-cache-ttl"`
}

// RateLimitConfig controls a sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CouponLimitConfig bounds coupon validation attempts per session.
type CouponLimitConfig struct {
	Max    int           `default:"20" usage:"Max coupon validations per window"`
	Window time.Duration `default:"1m" usage:"Coupon validation window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (session cookie)" flag:"cors-credentials"`
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
		EnvPrefix: "MISHRAMART",
		Files:     []string{"config.yaml", "/etc/mishramart/config.yaml"},
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

// Validate reports configuration that cannot start the server.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set MISHRAMART_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("api key pepper is required: set MISHRAMART_API_KEY_PEPPER")
	}
	if _, _, err := c.Pricing.Values(); err != nil {
		return err
	}
	if c.Razorpay.KeyID != "" && c.Razorpay.KeySecret == "" {
		return errors.New("razorpay key secret is required when a key id is set")
	}
	return nil
}

// Values parses the configured delivery fee and tax rate.
func (p PricingConfig) Values() (fee, rate decimal.Decimal, err error) {
	fee, err = decimal.NewFromString(p.DeliveryFee)
	if err != nil || fee.IsNegative() {
		return fee, rate, errors.Errorf("invalid delivery fee %q", p.DeliveryFee)
	}
	rate, err = decimal.NewFromString(p.TaxRate)
	if err != nil || rate.IsNegative() {
		return fee, rate, errors.Errorf("invalid tax rate %q", p.TaxRate)
	}
	return fee, rate, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's MISHRAMART_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.RedisURL == "" {
		c.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
