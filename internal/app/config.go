package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), a .env file, flags, or YAML
// config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BaseURL     string `default:"http://localhost:8080" usage:"Public URL used in email links" flag:"base-url"`
	Catalog     CatalogConfig
	Auth        AuthConfig
	Mail        MailConfig
	CartExpiry  CartExpiryConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// CatalogConfig controls listing page sizes.
type CatalogConfig struct {
	PageSize      int `default:"12" usage:"Products per storefront catalog page" flag:"catalog-page-size"`
	AdminPageSize int `default:"20" usage:"Rows per back-office listing page" flag:"admin-page-size"`
}

// AuthConfig controls session tokens.
type AuthConfig struct {
	Secret       string        `usage:"HMAC secret for session tokens (STOREFRONT_AUTH_SECRET)" flag:"auth-secret"`
	TTL          time.Duration `default:"24h" usage:"Session lifetime" flag:"auth-ttl"`
	CookieName   string        `default:"storefront_session" usage:"Session cookie name" flag:"auth-cookie"`
	SecureCookie bool          `default:"false" usage:"Send the session cookie over HTTPS only" flag:"auth-secure-cookie"`
}

// MailConfig selects the transactional email provider.
type MailConfig struct {
	Provider      string `default:"log" usage:"Mail provider: log, postmark or sendgrid" flag:"mail-provider"`
	From          string `default:"no-reply@mystore.com" usage:"Sender address" flag:"mail-from"`
	PostmarkToken string `usage:"Postmark server token" flag:"postmark-token"`
	SendgridKey   string `usage:"SendGrid API key" flag:"sendgrid-key"`
}

// CartExpiryConfig controls the in-process sweep of abandoned carts.
type CartExpiryConfig struct {
	MaxAge   time.Duration `default:"720h" usage:"Age after which active carts expire" flag:"cart-max-age"`
	Interval time.Duration `default:"1h" usage:"Sweep interval, 0 disables the in-process sweep" flag:"cart-expiry-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiters.
type RateLimitConfig struct {
	Max        int           `default:"100" usage:"Max requests per window"`
	Window     time.Duration `default:"1m"  usage:"Rate limit window duration"`
	AuthMax    int           `default:"10"  usage:"Max login, registration and password reset posts per auth window" flag:"auth-rate-max"`
	AuthWindow time.Duration `default:"15m" usage:"Window of the credential post limit" flag:"auth-rate-window"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from .env, environment variables, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(false)
}

func loadConfig(skipFlags bool) (*Config, error) {
	// A missing .env is fine; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		SkipFlags: skipFlags,
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set STOREFRONT_DATABASE_URL or DATABASE_URL")
	}
	if c.Auth.Secret == "" {
		return errors.New("session secret is required: set STOREFRONT_AUTH_SECRET")
	}
	switch strings.ToLower(c.Mail.Provider) {
	case "log":
	case "postmark":
		if c.Mail.PostmarkToken == "" {
			return errors.New("postmark token is required for the postmark mail provider")
		}
	case "sendgrid":
		if c.Mail.SendgridKey == "" {
			return errors.New("sendgrid key is required for the sendgrid mail provider")
		}
	default:
		return errors.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
