package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App  AppConfig
	API  APIConfig
	Mock MockServerConfig
}

type AppConfig struct {
	Environment string
	LogFilePath string
}

type APIConfig struct {
	BaseURL        string
	Token          string
	TimeoutSeconds int
}

type MockServerConfig struct {
	Port         string
	JWTSecret    string
	ChunkDelayMs int
	// RateLimitEvery forces a 429 on every Nth send so the client's
	// rate-limit handling can be exercised locally. 0 disables it.
	RateLimitEvery int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogFilePath: getEnv("LOG_FILE_PATH", "tutorchat.log"),
		},
		API: APIConfig{
			BaseURL:        getEnv("TUTOR_API_BASE_URL", "http://localhost:3000/api"),
			Token:          getEnv("TUTOR_API_TOKEN", ""),
			TimeoutSeconds: getEnvAsInt("TUTOR_API_TIMEOUT_SECONDS", 120),
		},
		Mock: MockServerConfig{
			Port:           getEnv("MOCK_PORT", "3000"),
			JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
			ChunkDelayMs:   getEnvAsInt("MOCK_CHUNK_DELAY_MS", 40),
			RateLimitEvery: getEnvAsInt("MOCK_RATE_LIMIT_EVERY", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
