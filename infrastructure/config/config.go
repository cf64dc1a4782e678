// Package config loads the adapter's configuration from environment
// variables. Every value has a usable default except the region, which may be
// omitted when the caller supplies a long-lived DynamoDB client instead.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds all adapter configuration.
type Config struct {
	// AWS configuration
	AWSRegion string `validate:"omitempty"`

	// Table names
	UsersTable         string `validate:"required"`
	OAuthAccountsTable string `validate:"omitempty"`
	AccessTokensTable  string `validate:"required"`

	// TokenPrimaryKey is the partition-key attribute name of the access token
	// table. Callers renaming the key override this.
	TokenPrimaryKey string `validate:"required"`

	// Provisioning
	BillingMode        string `validate:"oneof=PAY_PER_REQUEST PROVISIONED"`
	ReadCapacityUnits  int64  `validate:"gte=1"`
	WriteCapacityUnits int64  `validate:"gte=1"`

	// ConsistentReads makes stores re-read their own writes with strongly
	// consistent reads, closing the eventual-consistency window.
	ConsistentReads bool

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		AWSRegion:          getEnv("AWS_REGION", ""),
		UsersTable:         getEnv("USERS_TABLE_NAME", "users"),
		OAuthAccountsTable: getEnv("OAUTH_ACCOUNTS_TABLE_NAME", ""),
		AccessTokensTable:  getEnv("ACCESS_TOKENS_TABLE_NAME", "access_tokens"),
		TokenPrimaryKey:    getEnv("DATABASE_TOKENTABLE_PRIMARY_KEY", "token"),
		BillingMode:        getEnv("DATABASE_BILLING_MODE", "PAY_PER_REQUEST"),
		ReadCapacityUnits:  getEnvInt64("DATABASE_READ_CAPACITY_UNITS", 5),
		WriteCapacityUnits: getEnvInt64("DATABASE_WRITE_CAPACITY_UNITS", 5),
		ConsistentReads:    getEnvBool("DATABASE_CONSISTENT_READS", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
