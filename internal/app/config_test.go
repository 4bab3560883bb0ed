package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STOREFRONT_DATABASE_URL", "postgres://localhost/storefront")
	t.Setenv("STOREFRONT_AUTH_SECRET", "secret")
	t.Setenv("PORT", "")

	cfg, err := loadConfig(true)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, "postgres://localhost/storefront", cfg.DatabaseURL)
	assert.Equal(t, 12, cfg.Catalog.PageSize)
	assert.Equal(t, 20, cfg.Catalog.AdminPageSize)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TTL)
	assert.Equal(t, "storefront_session", cfg.Auth.CookieName)
	assert.Equal(t, "log", cfg.Mail.Provider)
	assert.Equal(t, "no-reply@mystore.com", cfg.Mail.From)
	assert.Equal(t, 30*24*time.Hour, cfg.CartExpiry.MaxAge)
	assert.Equal(t, 100, cfg.RateLimit.Max)
	assert.Equal(t, 10, cfg.RateLimit.AuthMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.AuthWindow)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)
}

func TestLoadConfig_PlatformFallbacks(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/db")
	t.Setenv("PORT", "9090")
	t.Setenv("STOREFRONT_AUTH_SECRET", "secret")

	cfg, err := loadConfig(true)
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			DatabaseURL: "postgres://localhost/storefront",
			Auth:        AuthConfig{Secret: "secret"},
			Mail:        MailConfig{Provider: "log"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.DatabaseURL = "" },
			wantErr: "database URL is required",
		},
		{
			name:    "missing secret",
			mutate:  func(c *Config) { c.Auth.Secret = "" },
			wantErr: "session secret is required",
		},
		{
			name:    "postmark without token",
			mutate:  func(c *Config) { c.Mail.Provider = "postmark" },
			wantErr: "postmark token",
		},
		{
			name: "sendgrid with key",
			mutate: func(c *Config) {
				c.Mail.Provider = "SendGrid"
				c.Mail.SendgridKey = "key"
			},
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Mail.Provider = "pigeon" },
			wantErr: "unknown mail provider",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
