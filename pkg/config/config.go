package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string

	MaxRetries      int
	RetryDelay      time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns DATABASE_URL verbatim when set, otherwise a key=value postgres DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type Config struct {
	Port           string
	Production     bool
	LogLevel       string
	RequestTimeout time.Duration

	BreakerMaxFailures int
	BreakerCooldown    time.Duration

	Database DatabaseConfig

	// EnvFileLoaded is set by Load when a .env file was read.
	EnvFileLoaded bool
}

func (c Config) Addr() string {
	return ":" + c.Port
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	loaded := godotenv.Load() == nil
	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}
	cfg.EnvFileLoaded = loaded
	return cfg, nil
}

func FromEnv() (*Config, error) {
	production, err := getBool("RUNNING_IN_PRODUCTION", false)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := getDuration("REQUEST_TIMEOUT", 600*time.Second)
	if err != nil {
		return nil, err
	}
	breakerFailures, err := getInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	breakerCooldown, err := getDuration("BREAKER_COOLDOWN", 30*time.Second)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getInt("DB_MAX_RETRIES", 10)
	if err != nil {
		return nil, err
	}
	retryDelay, err := getDuration("DB_RETRY_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8888"),
		Production:         production,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RequestTimeout:     requestTimeout,
		BreakerMaxFailures: breakerFailures,
		BreakerCooldown:    breakerCooldown,
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			Host:            getEnv("DBHOST", "localhost"),
			Port:            getEnv("DBPORT", "5432"),
			User:            getEnv("DBUSER", "postgres"),
			Password:        os.Getenv("DBPASS"),
			Name:            getEnv("DBNAME", "restaurants"),
			SSLMode:         getEnv("DBSSL", "disable"),
			MaxRetries:      maxRetries,
			RetryDelay:      retryDelay,
			MaxOpenConns:    25,
			MaxIdleConns:    10,
			ConnMaxLifetime: 5 * time.Minute,
		},
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
