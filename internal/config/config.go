package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Remote   RemoteConfig
	Keeper   KeeperConfig
}

type ServerConfig struct {
	Port string
	Host string
	// PublicURL is the externally reachable base of this service; the
	// completion callback address is built from it.
	PublicURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RemoteConfig describes the browsershots account used by the keeper.
type RemoteConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  int
}

type KeeperConfig struct {
	Interval      time.Duration
	EnableLocking bool
	SweepSchedule string
	SweepMarkDone bool
}

func Load() *Config {
	port := getEnv("PORT", "8080")
	return &Config{
		Server: ServerConfig{
			Port:      port,
			Host:      getEnv("HOST", "localhost"),
			PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "autoshots"),
			Password: getEnv("DB_PASSWORD", "autoshots"),
			DBName:   getEnv("DB_NAME", "autoshots"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Remote: RemoteConfig{
			BaseURL:  strings.TrimRight(getEnv("BROWSERSHOTS_URL", "http://browsershots.org"), "/"),
			Username: getEnv("BROWSERSHOTS_USERNAME", ""),
			Password: getEnv("BROWSERSHOTS_PASSWORD", ""),
			Timeout:  getEnvAsInt("BROWSERSHOTS_TIMEOUT", 60),
		},
		Keeper: KeeperConfig{
			Interval:      getEnvAsDuration("EXTEND_INTERVAL", 20*time.Minute),
			EnableLocking: getEnvAsBool("ENABLE_RUN_LOCKING", false),
			SweepSchedule: getEnv("SWEEP_SCHEDULE", "@every 5m"),
			SweepMarkDone: getEnvAsBool("SWEEP_MARK_DONE", true),
		},
	}
}

// CallbackURL is where keeper runs report completion.
func (c *Config) CallbackURL() string {
	return c.Server.PublicURL + "/done"
}

// RemoteTimeout bounds every request issued to browsershots.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.Remote.Timeout) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func (c *Config) DatabaseURL() string {
	// If DATABASE_URL is set, use it directly
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return databaseURL
	}

	// Otherwise, construct from individual components
	return "postgres://" + c.Database.User + ":" + c.Database.Password +
		"@" + c.Database.Host + ":" + c.Database.Port +
		"/" + c.Database.DBName + "?sslmode=" + c.Database.SSLMode
}
