package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Redis      RedisConfig
	Scheduling SchedulingConfig
	Worker     WorkerConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// SchedulingConfig holds the knobs of the booking engine
type SchedulingConfig struct {
	// SlotSize is the fixed granularity of agenda slots
	SlotSize time.Duration

	// HorizonWeeks is the rolling lookahead window of generated availability
	HorizonWeeks int

	// LoyaltyWindowDays bounds both the loyal-client promotion lookback and
	// the patient inactivity cutoff
	LoyaltyWindowDays int

	// LockTTL is how long a per-professional booking lock lives
	LockTTL time.Duration
}

// WorkerConfig holds maintenance worker configuration
type WorkerConfig struct {
	Interval   time.Duration
	RunTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "scheduling"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Scheduling: SchedulingConfig{
			SlotSize:          getEnvAsDuration("SLOT_SIZE", 30*time.Minute),
			HorizonWeeks:      getEnvAsInt("AGENDA_HORIZON_WEEKS", 4),
			LoyaltyWindowDays: getEnvAsInt("LOYALTY_WINDOW_DAYS", 90),
			LockTTL:           getEnvAsDuration("BOOKING_LOCK_TTL", 5*time.Second),
		},
		Worker: WorkerConfig{
			Interval:   getEnvAsDuration("WORKER_INTERVAL", 24*time.Hour),
			RunTimeout: getEnvAsDuration("WORKER_RUN_TIMEOUT", 5*time.Minute),
		},
	}, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Horizon returns the rolling availability window as a duration
func (c *SchedulingConfig) Horizon() time.Duration {
	return time.Duration(c.HorizonWeeks) * 7 * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
