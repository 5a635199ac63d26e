package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", c.Port)
	assert.Equal(t, ":3000", c.Addr())
	assert.Equal(t, "/api", c.APIPrefix)
	assert.Equal(t, 8*time.Hour, c.TokenTTL)
	assert.Equal(t, 8, c.BcryptCost)
	assert.Equal(t, "memory", c.StoreDriver)
	assert.Equal(t, 120, c.RateLimitPerMinute)
	assert.Equal(t, []string{"*"}, c.CORSAllowedOrigins)

	p := c.Policy()
	assert.Equal(t, int64(250000), p.StartingReserve)
	assert.True(t, p.ReserveRatio.Equal(decimal.RequireFromString("0.25")))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "8000")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("MYSQL_ADDR", "db:3306")
	t.Setenv("BANK_STARTING_RESERVE", "1000")
	t.Setenv("BANK_RESERVE_RATIO", "0.1")
	t.Setenv("TOKEN_TTL", "1h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", c.Port)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSAllowedOrigins)

	opts := c.StoreOptions()
	assert.Equal(t, "mysql", opts.Driver)
	assert.Equal(t, "db:3306", opts.MySQLAddr)

	assert.Equal(t, int64(1100), c.Policy().BankOnHand(1000))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"driver":     func(c *Config) { c.StoreDriver = "postgres" },
		"ttl":        func(c *Config) { c.TokenTTL = 0 },
		"cost":       func(c *Config) { c.BcryptCost = 2 },
		"reserve":    func(c *Config) { c.BankStartingReserve = -1 },
		"ratio":      func(c *Config) { c.BankReserveRatio = decimal.RequireFromString("1.5") },
		"rate":       func(c *Config) { c.RateLimitPerMinute = -1 },
		"admin only": func(c *Config) { c.AdminEmail = "admin@local" },
		"secret":     func(c *Config) { c.JWTSecret = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			c, err := Load()
			require.NoError(t, err)
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestLoadRejectsBadRatio(t *testing.T) {
	t.Setenv("BANK_RESERVE_RATIO", "lots")
	_, err := Load()
	assert.Error(t, err)
}
