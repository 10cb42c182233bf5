package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"expenses/internal/core"
)

type Config struct {
	// HTTP Server
	Port          string
	PostRateLimit int

	// Remote expense collection
	APIURL         string
	GatewayTimeout time.Duration

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration
	MaxSessions   int

	// Presentation
	Currency string
	LogLevel string

	// AMQP change feed (disabled when URL is empty)
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// Load reads the environment, after merging an optional .env file.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) *Config {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	return &Config{
		Port:          getEnv("PORT", "8081"),
		PostRateLimit: getEnvInt("POST_RATE_LIMIT", 60),

		APIURL:         getEnv("API_URL", "http://127.0.0.1:8000/api/expenses/"),
		GatewayTimeout: getEnvDuration("GATEWAY_TIMEOUT", 0),

		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    getEnvDuration("SESSION_TTL", 12*time.Hour),
		MaxSessions:   getEnvInt("MAX_SESSIONS", 1000),

		Currency: getEnv("CURRENCY", "INR"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AMQPURL:        getEnv("AMQP_URL", ""),
		AMQPExchange:   getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPRoutingKey: getEnv("AMQP_ROUTING_KEY", "expense_changed"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.PostRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid post rate limit %d: must be at least 1", c.PostRateLimit))
	}

	if c.APIURL == "" {
		errors = append(errors, "API URL cannot be empty")
	} else if u, err := url.Parse(c.APIURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': %v", c.APIURL, err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", u.Scheme))
	} else if u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid API URL '%s': missing host", c.APIURL))
	}

	if c.GatewayTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid gateway timeout %v: must not be negative", c.GatewayTimeout))
	}

	if c.SessionSecret != "" && len(c.SessionSecret) < 16 {
		errors = append(errors, "session secret must be at least 16 characters")
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.MaxSessions < 1 {
		errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
	}

	if !core.NewCurrency(c.Currency).Valid() {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be an ISO 4217 code", c.Currency))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRoutingKey == "" {
			errors = append(errors, "AMQP routing key cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
