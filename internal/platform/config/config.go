package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config carries the server's environment-driven settings.
type Config struct {
	Port          string
	LogLevel      string
	LogFormat     string
	ProfilesFile  string
	DatabasePath  string
	MaxActiveJobs int
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv assembles a Config from environment variables, applying defaults
// for anything unset. An empty DatabasePath selects the in-memory store; an
// empty ProfilesFile selects the built-in presets.
func FromEnv() Config {
	return Config{
		Port:          GetEnv("PORT", "8080"),
		LogLevel:      GetEnv("LOG_LEVEL", "info"),
		LogFormat:     GetEnv("LOG_FORMAT", "json"),
		ProfilesFile:  GetEnv("PROFILES_FILE", ""),
		DatabasePath:  GetEnv("DATABASE_PATH", ""),
		MaxActiveJobs: GetEnvInt("MAX_ACTIVE_JOBS", 8),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}
