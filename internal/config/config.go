package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every runtime setting the service reads from the
// environment. A .env file in the working directory is honored via the
// godotenv autoload import in the server package.
type Config struct {
	Port               int
	DB                 DBConfig
	Gemini             GeminiConfig
	SchemaDir          string
	CORSAllowedOrigins []string
	ExecuteReadOnly    bool
}

type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	// Timeout bounds a single upstream attempt; retries each get a
	// fresh window.
	Timeout time.Duration
	// RetryInterval is the first backoff pause, doubling per attempt.
	RetryInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port: getenvInt("PORT", 8080),
		DB: DBConfig{
			Host:     getenv("DB_HOST", "localhost"),
			Port:     getenv("DB_PORT", "5432"),
			Username: getenv("DB_USERNAME", "postgres"),
			Password: getenv("DB_PASSWORD", "postgres"),
			Database: getenv("DB_DATABASE", "postgres"),
		},
		Gemini: GeminiConfig{
			APIKey:        os.Getenv("GEMINI_API_KEY"),
			Model:         getenv("GEMINI_MODEL", "gemini-2.5-flash-preview-05-20"),
			BaseURL:       getenv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
			Timeout:       60 * time.Second,
			RetryInterval: time.Second,
		},
		SchemaDir:          getenv("SCHEMA_DIR", "uploads"),
		CORSAllowedOrigins: getenvList("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		ExecuteReadOnly:    getenvBool("EXECUTE_READ_ONLY", false),
	}
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvList(key, fallback string) []string {
	value := getenv(key, fallback)
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
