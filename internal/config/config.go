package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	EnginePort        string
	PostgresURL       string
	TemporalAddress   string
	TemporalTaskQueue string

	LLMProvider string
	LLMModel    string
	LLMBaseURL  string
	LLMAPIKey   string

	WidgetModel       string
	ClassifierTimeout time.Duration

	SearchAPIKey  string
	SearchBaseURL string
	SearchModel   string

	InternalSecret string
	JWTSigningKey  string

	SearchCacheTTL time.Duration
}

func Load() Config {
	// A missing .env file is the normal production case.
	_ = godotenv.Load()

	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		EnginePort:        getEnv("ENGINE_PORT", "8080"),
		PostgresURL:       postgresURL,
		TemporalAddress:   getEnv("TEMPORAL_ADDRESS", ""),
		TemporalTaskQueue: getEnv("TEMPORAL_TASK_QUEUE", "glimmer-titles"),
		LLMProvider:       getEnv("LLM_PROVIDER", "openai"),
		LLMModel:          getEnv("LLM_MODEL", "gpt-4o"),
		LLMBaseURL:        getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:         getEnv("LLM_API_KEY", ""),
		WidgetModel:       getEnv("WIDGET_MODEL", "gpt-4o-mini"),
		ClassifierTimeout: getEnvDuration("CLASSIFIER_TIMEOUT", 5*time.Second),
		SearchAPIKey:      getEnv("SEARCH_API_KEY", ""),
		SearchBaseURL:     getEnv("SEARCH_BASE_URL", "https://api.perplexity.ai"),
		SearchModel:       getEnv("SEARCH_MODEL", "sonar-deep-research"),
		InternalSecret:    getEnv("INTERNAL_SERVICE_SECRET", ""),
		JWTSigningKey:     getEnv("JWT_SIGNING_KEY", ""),
		SearchCacheTTL:    getEnvDuration("SEARCH_CACHE_TTL", 15*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "glimmer")
	password := getEnv("POSTGRES_PASSWORD", "glimmer")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "glimmer")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
