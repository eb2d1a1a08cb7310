package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the catalog adaptation service
type Config struct {
	// Server
	Port        string
	Environment string

	// Database
	DBDriver    string // postgres or sqlite
	DatabaseURL string
	SQLitePath  string

	// Redis and NATS (optional)
	RedisURL string
	NATSURL  string

	// GCP
	GCPProjectID string

	// Content generation (optional)
	ContentProvider     string // "", openai or gemini
	ContentModel        string
	ContentTemperature  float64
	ContentAPIKey       string
	ContentAPIKeySecret string
	GeneratorTimeout    time.Duration
	GeneratorRateLimit  float64 // requests per second

	// Mapping and scoring
	MappingAcceptanceThreshold float64
	FuzzySimilarityThreshold   float64
	NewAttributePenalty        float64
	RemovedAttributePenalty    float64

	// Jobs
	MaxConcurrentJobs int
	JobTimeout        time.Duration

	// Uploads
	MaxUploadSizeMB int

	// Templates
	TemplatesFile string

	// CORS
	CORSAllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() *Config {
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := getEnv("DB_PASSWORD", "")
		dbName := getEnv("DB_NAME", "catalog_adaptation")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	return &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL: databaseURL,
		SQLitePath:  getEnv("SQLITE_PATH", "catalog-adaptation.db"),

		RedisURL: getEnv("REDIS_URL", ""),
		NATSURL:  getEnv("NATS_URL", ""),

		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		ContentProvider:     strings.ToLower(getEnv("CONTENT_PROVIDER", "")),
		ContentModel:        getEnv("CONTENT_MODEL", ""),
		ContentTemperature:  getEnvAsFloat("CONTENT_TEMPERATURE", 0.3),
		ContentAPIKey:       getEnv("CONTENT_API_KEY", ""),
		ContentAPIKeySecret: getEnv("CONTENT_API_KEY_SECRET", ""),
		GeneratorTimeout:    getEnvAsDuration("GENERATOR_TIMEOUT", 10*time.Second),
		GeneratorRateLimit:  getEnvAsFloat("GENERATOR_RATE_LIMIT", 2),

		MappingAcceptanceThreshold: getEnvAsFloat("MAPPING_ACCEPTANCE_THRESHOLD", 50),
		FuzzySimilarityThreshold:   getEnvAsFloat("FUZZY_SIMILARITY_THRESHOLD", 0.5),
		NewAttributePenalty:        getEnvAsFloat("NEW_ATTRIBUTE_PENALTY", 5),
		RemovedAttributePenalty:    getEnvAsFloat("REMOVED_ATTRIBUTE_PENALTY", 3),

		MaxConcurrentJobs: getEnvAsInt("MAX_CONCURRENT_JOBS", 3),
		JobTimeout:        getEnvAsDuration("JOB_TIMEOUT", 30*time.Minute),

		MaxUploadSizeMB: getEnvAsInt("MAX_UPLOAD_SIZE_MB", 20),

		TemplatesFile: getEnv("TEMPLATES_FILE", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}),
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// DefaultContentModel returns the model used when CONTENT_MODEL is unset
func (c *Config) DefaultContentModel() string {
	if c.ContentModel != "" {
		return c.ContentModel
	}
	switch c.ContentProvider {
	case "gemini":
		return "gemini-1.5-flash"
	case "openai":
		return "gpt-4o-mini"
	}
	return ""
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

// getEnvAsList splits a comma separated environment variable
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
