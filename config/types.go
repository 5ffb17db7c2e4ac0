package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Session SessionConfig `mapstructure:"session"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Listing ListingConfig `mapstructure:"listing"`
	Filter  FilterConfig  `mapstructure:"filter"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// APIConfig holds the epoch API connection details
type APIConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit"`
	Burst     int           `mapstructure:"burst"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SessionConfig controls where the pending booking record is kept
type SessionConfig struct {
	// Backend is one of memory, file or redis
	Backend string `mapstructure:"backend"`
	// Scope isolates sessions from each other; empty means one per terminal
	Scope string        `mapstructure:"scope"`
	TTL   time.Duration `mapstructure:"ttl"`
	Dir   string        `mapstructure:"dir"`
}

// RedisConfig holds redis connection details for the redis session backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig controls where the login token is remembered
type AuthConfig struct {
	File string `mapstructure:"file"`
}

// ListingConfig contains era listing settings
type ListingConfig struct {
	PerPage int `mapstructure:"per_page"`
}

// FilterConfig contains filter definitions
type FilterConfig struct {
	Presets map[string]string `mapstructure:"presets"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
