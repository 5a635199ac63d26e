// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"scrooge-bank/database"
	"scrooge-bank/ledger"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"3000"`
	APIPrefix string `envconfig:"API_PREFIX" default:"/api"`

	JWTSecret  string        `envconfig:"JWT_SECRET" default:"dev-secret"`
	TokenTTL   time.Duration `envconfig:"TOKEN_TTL" default:"8h"`
	BcryptCost int           `envconfig:"BCRYPT_COST" default:"8"`

	StoreDriver   string `envconfig:"STORE_DRIVER" default:"memory"`
	DataFile      string `envconfig:"DATA_FILE" default:"data/db.json"`
	MySQLAddr     string `envconfig:"MYSQL_ADDR" default:"localhost:3306"`
	MySQLUser     string `envconfig:"MYSQL_USER" default:"root"`
	MySQLPassword string `envconfig:"MYSQL_PASSWORD"`
	MySQLDatabase string `envconfig:"MYSQL_DATABASE" default:"banking_db"`

	BankStartingReserve int64           `envconfig:"BANK_STARTING_RESERVE" default:"250000"`
	BankReserveRatio    decimal.Decimal `envconfig:"BANK_RESERVE_RATIO" default:"0.25"`

	RateLimitPerMinute int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	AdminName     string `envconfig:"ADMIN_NAME" default:"Admin"`
	AdminEmail    string `envconfig:"ADMIN_EMAIL"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD"`

	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment  bool          `envconfig:"LOG_DEVELOPMENT" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.StoreDriver != database.DriverMemory && c.StoreDriver != database.DriverMySQL {
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", database.DriverMemory, database.DriverMySQL, c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.BankStartingReserve < 0 {
		errs = append(errs, errors.New("BANK_STARTING_RESERVE must not be negative"))
	}
	if c.BankReserveRatio.IsNegative() || c.BankReserveRatio.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, errors.New("BANK_RESERVE_RATIO must be between 0 and 1"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}
	return errors.Join(errs...)
}

func (c *Config) Policy() ledger.Policy {
	return ledger.Policy{StartingReserve: c.BankStartingReserve, ReserveRatio: c.BankReserveRatio}
}

func (c *Config) StoreOptions() database.Options {
	return database.Options{
		Driver:        c.StoreDriver,
		DataFile:      c.DataFile,
		MySQLAddr:     c.MySQLAddr,
		MySQLUser:     c.MySQLUser,
		MySQLPassword: c.MySQLPassword,
		MySQLDatabase: c.MySQLDatabase,
	}
}

func (c *Config) Addr() string {
	return ":" + c.Port
}
