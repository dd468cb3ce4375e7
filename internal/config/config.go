package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/franciscosanchezn/gin-device-auth/internal/database"
	"github.com/franciscosanchezn/gin-device-auth/internal/store"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		// Default to info level for other environments
		log.SetLevel(logrus.InfoLevel)
	}
}

// MinProductionSecretLength is the shortest AUTH_SECRET accepted in production
const MinProductionSecretLength = 32

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Port      int    `json:"port"`
	Host      string `json:"host"`
	Env       string `json:"env"`
	PublicURL string `json:"public_url"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	Issuer       string   `json:"issuer"`
	AuthSecret   string   `json:"auth_secret"`
	AdminClients []string `json:"admin_clients"`
	BcryptCost   int      `json:"bcrypt_cost"`
	Swagger      bool     `json:"swagger"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBPath     string `json:"db_path"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`

	// State store configuration
	StoreDriver    string `json:"store_driver"`
	RedisAddr      string `json:"redis_addr"`
	RedisPassword  string `json:"redis_password"`
	RedisDB        int    `json:"redis_db"`
	RedisKeyPrefix string `json:"redis_key_prefix"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Port: %d, Host: %s, Env: %s, PublicURL: %s, LogLevel: %s, Issuer: %s, AuthSecret: [REDACTED], "+
		"AdminClients: %v, DBDriver: %s, DBPath: %s, DBHost: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], "+
		"StoreDriver: %s, RedisAddr: %s, RedisPassword: [REDACTED], RedisDB: %d, RedisKeyPrefix: %s}",
		c.Port, c.Host, c.Env, c.PublicURL, c.LogLevel, c.Issuer, c.AdminClients,
		c.DBDriver, c.DBPath, c.DBHost, c.DBName, c.DBUser,
		c.StoreDriver, c.RedisAddr, c.RedisDB, c.RedisKeyPrefix)
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Database returns the connection settings for database.InitDatabase
func (c *Config) Database() database.DatabaseConfig {
	return database.DatabaseConfig{
		Driver:   c.DBDriver,
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
		Path:     c.DBPath,
	}
}

// Redis returns the connection settings for store.NewRedisStore
func (c *Config) Redis() store.RedisConfig {
	return store.RedisConfig{
		Addr:      c.RedisAddr,
		Password:  c.RedisPassword,
		DB:        c.RedisDB,
		KeyPrefix: c.RedisKeyPrefix,
	}
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// It also validates formats like PUBLIC_URL and AUTH_SECRET
// Returns an error if any required environment variable is missing or invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}
	host := GetEnvWithDefault("APP_HOST", "localhost")

	publicURL := strings.TrimRight(GetEnvWithDefault("PUBLIC_URL", fmt.Sprintf("http://%s:%d", host, port)), "/")
	// validate URL with net/url
	if _, err := url.ParseRequestURI(publicURL); err != nil {
		return nil, fmt.Errorf("invalid PUBLIC_URL format: %s", publicURL)
	}

	config := &Config{
		Port:      port,
		Host:      host,
		Env:       GetEnvWithDefault("APP_ENV", "development"),
		PublicURL: publicURL,
		LogLevel:  GetEnvWithDefault("LOG_LEVEL", "info"),

		Issuer:       GetEnvWithDefault("AUTH_ISSUER", publicURL),
		AuthSecret:   os.Getenv("AUTH_SECRET"),
		AdminClients: splitList(GetEnvWithDefault("ADMIN_CLIENT_IDS", "")),
		BcryptCost:   GetEnvAsType("BCRYPT_COST", 10),
		Swagger:      GetEnvAsType("SWAGGER_ENABLED", true),

		DBDriver:   GetEnvWithDefault("DB_DRIVER", "sqlite"),
		DBPath:     GetEnvWithDefault("DB_PATH", "device-auth.sqlite"),
		DBHost:     GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     GetEnvWithDefault("DB_PORT", "5432"),
		DBUser:     GetEnvWithDefault("DB_USER", "user"),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", "password"),
		DBName:     GetEnvWithDefault("DB_NAME", "device_auth"),
		DBSSLMode:  GetEnvWithDefault("DB_SSLMODE", "disable"),

		StoreDriver:    strings.ToLower(GetEnvWithDefault("STORE_DRIVER", "redis")),
		RedisAddr:      GetEnvWithDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        GetEnvAsType("REDIS_DB", 0),
		RedisKeyPrefix: GetEnvWithDefault("REDIS_KEY_PREFIX", "device-auth:"),
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

func (c *Config) validate() error {
	if c.AuthSecret == "" {
		return errors.New("AUTH_SECRET environment variable is required")
	}
	if c.IsProduction() && len(c.AuthSecret) < MinProductionSecretLength {
		return fmt.Errorf("AUTH_SECRET must be at least %d characters in production", MinProductionSecretLength)
	}
	switch c.StoreDriver {
	case "redis", "memory":
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (supported: redis, memory)", c.StoreDriver)
	}
	if c.IsProduction() && c.StoreDriver == "memory" {
		log.Warn("STORE_DRIVER=memory keeps device sessions in process; they are lost on restart")
	}
	return nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("Environment variable %s is not an integer, using default value", key)
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("Environment variable %s is not a boolean, using default value", key)
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
