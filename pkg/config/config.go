// Package config provides configuration management for the invoice
// reconciler. It loads configuration from environment variables and .env
// files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	Data     DataConfig
	Pipeline PipelineConfig
	Bank     BankConfig
	Gmail    GmailConfig
	Slack    SlackConfig
	CloudCFO CloudCFOConfig
	Portal   PortalConfig
	Health   HealthConfig

	Environment string
	Debug       bool
}

// DataConfig represents local storage configuration.
type DataConfig struct {
	Root         string
	DatabasePath string
	InvoicesDir  string
}

// PipelineConfig represents reconciliation loop and retry configuration.
type PipelineConfig struct {
	PollInterval      time.Duration
	RetryMaxAttempts  int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

// BankConfig represents bank portal credentials.
type BankConfig struct {
	URL      string
	Username string
	Password string
}

// GmailConfig represents Gmail / Google Drive API configuration.
// Both Google adapters share the same OAuth credentials.
type GmailConfig struct {
	CredentialsPath string
	TokenPath       string
}

// SlackConfig represents Slack API configuration.
type SlackConfig struct {
	Token  string
	APIURL string
}

// CloudCFOConfig represents accounting platform credentials.
type CloudCFOConfig struct {
	URL      string
	Username string
	Password string
}

// PortalConfig represents vendor billing portal configuration.
type PortalConfig struct {
	ConfigPath string
}

// HealthConfig represents the health endpoint configuration.
type HealthConfig struct {
	Port int
}

// Load loads configuration from environment variables.
// It automatically loads .env file from the current directory if available.
// You can optionally specify a custom .env file path.
func Load(envPath ...string) (*Config, error) {
	if len(envPath) > 0 && envPath[0] != "" {
		if err := godotenv.Load(envPath[0]); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	} else {
		// Try to load .env from current directory (ignore error if not found)
		_ = godotenv.Load()
	}

	pollInterval, err := parseDurationEnv("POLL_INTERVAL_SECONDS", 900*time.Second)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parseIntEnv("RETRY_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	retryInitialDelay, err := parseDurationEnv("RETRY_INITIAL_DELAY_SECONDS", time.Second)
	if err != nil {
		return nil, err
	}
	retryMaxDelay, err := parseDurationEnv("RETRY_MAX_DELAY_SECONDS", 10*time.Second)
	if err != nil {
		return nil, err
	}
	healthPort, err := parseIntEnv("HEALTH_PORT", 8000)
	if err != nil {
		return nil, err
	}

	config := &Config{
		Data: DataConfig{
			Root:         getEnvOrDefault("DATA_DIR", "./data"),
			DatabasePath: os.Getenv("DATABASE_PATH"),
			InvoicesDir:  os.Getenv("INVOICES_DIR"),
		},
		Pipeline: PipelineConfig{
			PollInterval:      pollInterval,
			RetryMaxAttempts:  retryAttempts,
			RetryInitialDelay: retryInitialDelay,
			RetryMaxDelay:     retryMaxDelay,
		},
		Bank: BankConfig{
			URL:      os.Getenv("UNIONBANK_URL"),
			Username: os.Getenv("UNIONBANK_USERNAME"),
			Password: os.Getenv("UNIONBANK_PASSWORD"),
		},
		Gmail: GmailConfig{
			CredentialsPath: os.Getenv("GMAIL_CREDENTIALS_PATH"),
			TokenPath:       getEnvOrDefault("GMAIL_TOKEN_PATH", ".credentials/gmail-token.json"),
		},
		Slack: SlackConfig{
			Token:  os.Getenv("SLACK_API_TOKEN"),
			APIURL: getEnvOrDefault("SLACK_API_URL", "https://slack.com/api"),
		},
		CloudCFO: CloudCFOConfig{
			URL:      os.Getenv("CLOUDCFO_URL"),
			Username: os.Getenv("CLOUDCFO_USERNAME"),
			Password: os.Getenv("CLOUDCFO_PASSWORD"),
		},
		Portal: PortalConfig{
			ConfigPath: os.Getenv("PORTAL_CONFIG_PATH"),
		},
		Health: HealthConfig{
			Port: healthPort,
		},
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		Debug:       os.Getenv("DEBUG") == "true",
	}

	return config, nil
}

// Validate checks that the named configuration keys are set.
func (c *Config) Validate(required ...string) error {
	values := map[string]string{
		"unionbank.url":          c.Bank.URL,
		"unionbank.username":     c.Bank.Username,
		"unionbank.password":     c.Bank.Password,
		"gmail.credentials_path": c.Gmail.CredentialsPath,
		"slack.token":            c.Slack.Token,
		"cloudcfo.url":           c.CloudCFO.URL,
		"cloudcfo.username":      c.CloudCFO.Username,
		"cloudcfo.password":      c.CloudCFO.Password,
		"data.root":              c.Data.Root,
	}

	var missing []string
	for _, key := range required {
		if values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v\nPlease check your .env file or environment variables", missing)
	}

	return nil
}

// getEnvOrDefault returns the value of the environment variable or a default value if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv parses an int from an environment variable.
// Returns defaultValue if the environment variable is not set.
func parseIntEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value for %s: %s", key, value)
	}

	return parsed, nil
}

// parseDurationEnv parses a duration in whole seconds from an environment
// variable. Returns defaultValue if the environment variable is not set.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value for %s: %s", key, value)
	}

	return time.Duration(seconds) * time.Second, nil
}
