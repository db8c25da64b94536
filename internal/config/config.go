package config

import (
	"errors"
	"sync"

	"github.com/spf13/viper"
)

// Backend names accepted by NOTES_BACKEND.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendKV     = "kv"
	BackendMongo  = "mongo"
)

// Storage names accepted by KV_STORAGE.
const (
	KVStorageFile  = "file"
	KVStorageRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	AppPort               int    `mapstructure:"APP_PORT"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	LogFormat             string `mapstructure:"LOG_FORMAT"`
	NotesBackend          string `mapstructure:"NOTES_BACKEND"`
	SQLitePath            string `mapstructure:"SQLITE_PATH"`
	KVStorage             string `mapstructure:"KV_STORAGE"`
	KVDir                 string `mapstructure:"KV_DIR"`
	KVKey                 string `mapstructure:"KV_KEY"`
	RedisAddr             string `mapstructure:"REDIS_ADDR"`
	RedisPassword         string `mapstructure:"REDIS_PASSWORD"`
	RedisDB               int    `mapstructure:"REDIS_DB"`
	MongoURI              string `mapstructure:"MONGO_URI"`
	MongoDBName           string `mapstructure:"MONGO_DB_NAME"`
	SubscriberBuffer      int    `mapstructure:"SUBSCRIBER_BUFFER"`
	AuthEnabled           bool   `mapstructure:"AUTH_ENABLED"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	WSMaxSessionSec       int    `mapstructure:"WS_MAX_SESSION_SEC"`
	WriteRatePerMin       int    `mapstructure:"WRITE_RATE_PER_MIN"`
	RouteMetricsEnabled   bool   `mapstructure:"ROUTE_METRICS_ENABLED"`
	RequestLoggingEnabled bool   `mapstructure:"REQUEST_LOGGING_ENABLED"`
	PyroscopeAddr         string `mapstructure:"PYROSCOPE_SERVER_ADDRESS"`
}

var (
	cachedConfig *Config
	configMutex  sync.RWMutex
)

// Load loads configuration from environment variables and .env file
// It caches the result for subsequent calls
func Load() (Config, error) {
	configMutex.RLock()
	if cachedConfig != nil {
		defer configMutex.RUnlock()
		return *cachedConfig, nil
	}
	configMutex.RUnlock()

	configMutex.Lock()
	defer configMutex.Unlock()

	// Double-check in case another goroutine loaded it while we waited for the lock
	if cachedConfig != nil {
		return *cachedConfig, nil
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("NOTES_BACKEND", BackendSQLite)
	v.SetDefault("SQLITE_PATH", "viterbi_notes.db")
	v.SetDefault("KV_STORAGE", KVStorageFile)
	v.SetDefault("KV_DIR", ".viterbi")
	v.SetDefault("KV_KEY", "viterbi_notes")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MONGO_URI", "mongodb://mongo:27017")
	v.SetDefault("MONGO_DB_NAME", "viterbi")
	v.SetDefault("SUBSCRIBER_BUFFER", 4) // pending snapshots per subscriber
	v.SetDefault("AUTH_ENABLED", false)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("WS_MAX_SESSION_SEC", 900)
	v.SetDefault("WRITE_RATE_PER_MIN", 120)
	v.SetDefault("ROUTE_METRICS_ENABLED", true)
	v.SetDefault("REQUEST_LOGGING_ENABLED", true)
	v.SetDefault("PYROSCOPE_SERVER_ADDRESS", "")

	// Configure Viper to read from .env file (if present)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// Try to read .env file (it's okay if it doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	// Override with OS environment variables
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	// Cache the configuration
	cachedConfig = &cfg

	return cfg, nil
}

// ResetCache clears the cached configuration (for testing purposes)
func ResetCache() {
	configMutex.Lock()
	defer configMutex.Unlock()
	cachedConfig = nil
}

// Validate checks if required configuration fields are properly set
func (c Config) Validate() error {
	if c.AppPort <= 0 {
		return errors.New("APP_PORT must be greater than 0")
	}
	if c.LogLevel == "" {
		return errors.New("LOG_LEVEL cannot be empty")
	}
	if c.LogFormat == "" {
		return errors.New("LOG_FORMAT cannot be empty")
	}
	if c.SubscriberBuffer <= 0 {
		return errors.New("SUBSCRIBER_BUFFER must be greater than 0")
	}
	if c.WSMaxSessionSec <= 0 {
		return errors.New("WS_MAX_SESSION_SEC must be greater than 0")
	}
	if c.WriteRatePerMin < 0 {
		return errors.New("WRITE_RATE_PER_MIN cannot be negative")
	}
	if c.AuthEnabled && len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters when AUTH_ENABLED is true")
	}

	switch c.NotesBackend {
	case BackendMemory:
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH cannot be empty")
		}
	case BackendKV:
		if c.KVKey == "" {
			return errors.New("KV_KEY cannot be empty")
		}
		switch c.KVStorage {
		case KVStorageFile:
			if c.KVDir == "" {
				return errors.New("KV_DIR cannot be empty")
			}
		case KVStorageRedis:
			if c.RedisAddr == "" {
				return errors.New("REDIS_ADDR cannot be empty")
			}
		default:
			return errors.New("KV_STORAGE must be either file or redis")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI cannot be empty")
		}
		if c.MongoDBName == "" {
			return errors.New("MONGO_DB_NAME cannot be empty")
		}
	default:
		return errors.New("NOTES_BACKEND must be one of memory, sqlite, kv, mongo")
	}
	return nil
}
