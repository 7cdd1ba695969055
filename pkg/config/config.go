package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BaseURL         string
	Environment     string
	CredentialsFile string
	RequestTimeout  time.Duration

	// Client-side guard against accidental send floods.
	SendBurst  int
	SendRefill time.Duration

	// How long an unacknowledged optimistic message stays "sending"
	// before it is marked failed.
	AckWindow time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		BaseURL:         getEnv("UNIMARKET_BASE_URL", "http://localhost:8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		CredentialsFile: getEnv("UNIMARKET_CREDENTIALS_FILE", defaultCredentialsFile()),
		RequestTimeout:  getEnvAsDuration("UNIMARKET_REQUEST_TIMEOUT", 15*time.Second),
		SendBurst:       int(getEnvAsInt64("UNIMARKET_SEND_BURST", 10)),
		SendRefill:      getEnvAsDuration("UNIMARKET_SEND_REFILL", 6*time.Second),
		AckWindow:       getEnvAsDuration("UNIMARKET_ACK_WINDOW", 20*time.Second),
	}

	return config, nil
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".unimarket-session.json"
	}
	return dir + "/unimarket/session.json"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
