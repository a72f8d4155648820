package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Log      LogConfig
	Events   EventsConfig
	Leave    LeaveConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	DBName     string
	SSLMode    string
	TestDBName string // Separate database for testing

	MaxOpenConns int
	MaxIdleConns int
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level  string
	Format string
}

// EventsConfig configures the optional Redis stream sink for emitted events
type EventsConfig struct {
	RedisURL string
}

// LeaveConfig holds the default yearly allocations (in days) granted to new users,
// keyed by leave type name.
type LeaveConfig struct {
	DefaultAllocations map[string]float64
}

const defaultJWTSecret = "dev-secret-change-in-production"

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// UsesDefaultSecret reports whether the JWT secret was left at its development value
func (c *AuthConfig) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			CORSOrigins: getEnvAsList("CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:       getEnv("DB_HOST", "localhost"),
			Port:       getEnvAsInt("DB_PORT", 5432),
			Username:   getEnv("DB_USERNAME", "postgres"),
			Password:   getEnv("DB_PASSWORD", "password"),
			DBName:     getEnv("DB_NAME", "staff_scheduler"),
			SSLMode:    getEnv("DB_SSLMODE", "disable"),
			TestDBName: getEnv("TEST_DB_NAME", "staff_scheduler_test"),

			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", defaultJWTSecret),
			TokenTTL:  time.Duration(getEnvAsInt("TOKEN_TTL_HOURS", 24)) * time.Hour,
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Events: EventsConfig{
			RedisURL: getEnv("REDIS_URL", ""),
		},
		Leave: LeaveConfig{
			DefaultAllocations: map[string]float64{
				"Annual Leave":   getEnvAsFloat("DEFAULT_ANNUAL_LEAVE", 25),
				"Sick Leave":     getEnvAsFloat("DEFAULT_SICK_LEAVE", 10),
				"Personal Leave": getEnvAsFloat("DEFAULT_PERSONAL_LEAVE", 5),
				"Bereavement":    getEnvAsFloat("DEFAULT_BEREAVEMENT_LEAVE", 5),
			},
		},
	}
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := strings.TrimSpace(getEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
