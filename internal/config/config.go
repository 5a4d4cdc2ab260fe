// Package config provides configuration management for triggerd.
// It loads configuration from environment variables with sensible defaults
// and validates it before the engine starts.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Admin API port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - LOG_FILE: Optional log file, logs go to stdout when empty
//
// Triggers:
//   - TRIGGERS_PATH: JSON file holding the trigger list (default: ./triggers.json)
//   - HOT_RELOAD: Reload triggers when the file changes on disk (default: false)
//   - INJECTION_MODE: Placeholder forms honoured by the injector, "whole", "inline" or "both" (default: both)
//   - BUS_BUFFER_SIZE: Per-subscriber buffer of the event bus (default: 256)
//
// Users:
//   - USER_STORE: "memory" or "redis" (default: memory)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Providers:
//   - RELAY_PROVIDERS: Comma separated provider ids relayed over redis
//   - PROVIDER_REFRESH_TIMEOUT: Upper bound for a catalogue refresh (default: 10s)
//
// Schedules:
//   - SCHEDULE_PATH: YAML file of scheduled events, disabled when empty
//
// TikFinity bridge:
//   - TIKFINITY_PORT: Port of the TikFinity web-server integration, disabled when empty
//   - TIKFINITY_SECRET: When set, exec calls must carry an HMAC-SHA256 X-Signature header
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED: Enable rate limiting of the admin API (default: true)
//   - RATE_LIMIT_RPS: Requests per second per client (default: 10)
//   - RATE_LIMIT_BURST: Burst size per client (default: 20)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"triggerd/internal/common/errors"
	"triggerd/internal/injector"
)

// User store backends.
const (
	UserStoreMemory = "memory"
	UserStoreRedis  = "redis"
)

// Config holds all configuration for the application.
// Values are read from the environment by Load and checked by Validate.
type Config struct {
	// Application settings
	Port     string
	LogLevel string
	LogFile  string

	// Triggers
	TriggersPath  string
	HotReload     bool
	InjectionMode string
	BusBufferSize int

	// Users
	UserStore string

	// Redis configuration
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	// Providers
	RelayProviders         []string
	ProviderRefreshTimeout time.Duration

	// Schedules
	SchedulePath string

	// TikFinity bridge
	TikfinityPort   string
	TikfinitySecret string

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// parse failures collected by Load, reported by Validate
	invalid []string
}

// Load reads the configuration from the environment. Malformed numeric or
// duration values fall back to their defaults and are reported by Validate.
func Load() *Config {
	c := &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		TriggersPath:  getEnv("TRIGGERS_PATH", "./triggers.json"),
		HotReload:     getBoolEnv("HOT_RELOAD", false),
		InjectionMode: getEnv("INJECTION_MODE", string(injector.ModeBoth)),

		UserStore: strings.ToLower(getEnv("USER_STORE", UserStoreMemory)),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		RelayProviders: getListEnv("RELAY_PROVIDERS"),
		SchedulePath:   getEnv("SCHEDULE_PATH", ""),

		TikfinityPort:   getEnv("TIKFINITY_PORT", ""),
		TikfinitySecret: getEnv("TIKFINITY_SECRET", ""),

		RateLimitEnabled: getBoolEnv("RATE_LIMIT_ENABLED", true),
	}

	c.BusBufferSize = c.getIntEnv("BUS_BUFFER_SIZE", 256)
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", 10)
	c.ProviderRefreshTimeout = c.getDurationEnv("PROVIDER_REFRESH_TIMEOUT", 10*time.Second)
	c.RateLimitRPS = c.getFloatEnv("RATE_LIMIT_RPS", 10)
	c.RateLimitBurst = c.getIntEnv("RATE_LIMIT_BURST", 20)
	return c
}

// NeedsRedis reports whether any configured component talks to redis.
func (c *Config) NeedsRedis() bool {
	return c.UserStore == UserStoreRedis || len(c.RelayProviders) > 0
}

// Validate checks the loaded configuration and returns the first problem
// found as a config error.
func (c *Config) Validate() error {
	if len(c.invalid) > 0 {
		return errors.ConfigError(c.invalid[0])
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return errors.ConfigError("PORT must be a valid port number between 1 and 65535")
	}

	if c.TikfinityPort != "" {
		if port, err := strconv.Atoi(c.TikfinityPort); err != nil || port < 1 || port > 65535 {
			return errors.ConfigError("TIKFINITY_PORT must be a valid port number between 1 and 65535")
		}
		if c.TikfinityPort == c.Port {
			return errors.ConfigError("TIKFINITY_PORT must differ from PORT")
		}
	}

	if c.TriggersPath == "" {
		return errors.ConfigError("TRIGGERS_PATH must not be empty")
	}

	if _, err := injector.ParseMode(c.InjectionMode); err != nil {
		return errors.ConfigError("INJECTION_MODE must be 'whole', 'inline' or 'both'")
	}

	if c.BusBufferSize < 1 {
		return errors.ConfigError("BUS_BUFFER_SIZE must be a positive number")
	}

	switch c.UserStore {
	case UserStoreMemory, UserStoreRedis:
	default:
		return errors.ConfigError("USER_STORE must be 'memory' or 'redis'")
	}

	if c.NeedsRedis() {
		if c.RedisAddress == "" {
			return errors.ConfigError("REDIS_ADDRESS is required when USER_STORE is redis or RELAY_PROVIDERS is set")
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return errors.ConfigError("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return errors.ConfigError("REDIS_POOL_SIZE must be a positive number")
		}
	}

	seen := make(map[string]bool, len(c.RelayProviders))
	for _, id := range c.RelayProviders {
		if seen[id] {
			return errors.ConfigError(fmt.Sprintf("RELAY_PROVIDERS lists '%s' twice", id))
		}
		seen[id] = true
	}

	if c.ProviderRefreshTimeout <= 0 {
		return errors.ConfigError("PROVIDER_REFRESH_TIMEOUT must be a positive duration")
	}

	if c.RateLimitEnabled {
		if c.RateLimitRPS <= 0 {
			return errors.ConfigError("RATE_LIMIT_RPS must be a positive number")
		}
		if c.RateLimitBurst < 1 {
			return errors.ConfigError("RATE_LIMIT_BURST must be a positive number")
		}
	}

	return nil
}

// getEnv retrieves an environment variable value or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getBoolEnv retrieves a boolean environment variable value or returns a default value.
// Accepts "true", "1", "yes", "on" as true and "false", "0", "no", "off" as false.
func getBoolEnv(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}

// getListEnv splits a comma separated variable, dropping blanks.
func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be an integer, got '%s'", key, value))
		return defaultValue
	}
	return n
}

func (c *Config) getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be a number, got '%s'", key, value))
		return defaultValue
	}
	return f
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		c.invalid = append(c.invalid, fmt.Sprintf("%s must be a valid duration (e.g. '10s'), got '%s'", key, value))
		return defaultValue
	}
	return d
}
