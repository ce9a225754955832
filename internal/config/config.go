// Package config provides configuration parsing and validation for the
// creditwatch service.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all configuration parameters for the service.
type Config struct {
	KafkaBrokers    string
	AlertsTopic     string
	DeadLetterTopic string
	ConsumerGroupID string
	PostgresDSN     string
	RedisAddr       string
	ListenAddr      string
	AuthTokensFile  string

	WorkerCount int
	BatchSize   int
	MaxAttempts int
	ReceiveWait time.Duration
	IdleBackoff time.Duration
}

// Validate checks that all required configuration fields are set and have
// valid values. Returns an error if validation fails, nil otherwise.
func (c *Config) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertsTopic == "" {
		return fmt.Errorf("alerts-topic cannot be empty")
	}
	if c.DeadLetterTopic == "" {
		return fmt.Errorf("dlq-topic cannot be empty")
	}
	if c.AlertsTopic == c.DeadLetterTopic {
		return fmt.Errorf("dlq-topic must differ from alerts-topic")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("listen-addr cannot be empty")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker-count must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max-attempts must be positive")
	}
	if c.ReceiveWait <= 0 {
		return fmt.Errorf("receive-wait must be positive")
	}
	if c.IdleBackoff <= 0 {
		return fmt.Errorf("idle-backoff must be positive")
	}
	return nil
}

// GetEnvOrDefault returns the environment variable value or a default if
// not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// MaskDSN masks sensitive information in a DSN for logging.
func MaskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:20] + "***" + dsn[len(dsn)-20:]
	}
	return "***"
}
