package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/chriszimbizi/study-buddy/internal/core"
)

type Config struct {
	OpenAIAPIKey          string
	DatabaseURL           string
	HTTPPort              string
	LogLevel              string
	AssistantModel        string
	AssistantName         string
	AssistantInstructions string
	AllowedFileTypes      []string
	MaxUploadBytes        int64
	RunPollInterval       time.Duration
	RunTimeout            time.Duration
	UseInMemoryStore      bool
}

const defaultInstructions = "You are a study buddy. Answer questions about the documents the user has uploaded. " +
	"Ground every answer in the uploaded material and cite the source passages. " +
	"If the documents do not contain the answer, say so instead of guessing."

var AppConfig Config

// Load reads configuration from the environment (and an optional .env file)
// into AppConfig. The OpenAI API key is the one required value; without it no
// assistant operation can succeed, so its absence is a configuration error.
func Load() error {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		DatabaseURL:           getEnv("DATABASE_URL", "study_buddy.db"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "INFO"),
		AssistantModel:        getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
		AssistantName:         getEnv("ASSISTANT_NAME", "Study Buddy"),
		AssistantInstructions: getEnv("ASSISTANT_INSTRUCTIONS", defaultInstructions),
		AllowedFileTypes:      getEnvAsList("ALLOWED_FILE_TYPES", []string{"pdf", "docx", "txt"}),
		MaxUploadBytes:        int64(getEnvAsInt("MAX_UPLOAD_BYTES", 20*1024*1024)),
		RunPollInterval:       getEnvAsDuration("RUN_POLL_INTERVAL", 2*time.Second),
		RunTimeout:            getEnvAsDuration("RUN_TIMEOUT", 2*time.Minute),
		UseInMemoryStore:      getEnvAsBool("USE_IN_MEMORY_STORE", false),
	}

	if AppConfig.OpenAIAPIKey == "" {
		return core.NewConfigurationError("OPENAI_API_KEY environment variable is required", nil)
	}

	return nil
}

func getEnv(key string, defaultValue string) string {
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

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

// getEnvAsList parses a comma-separated value, e.g. ALLOWED_FILE_TYPES=pdf,docx,txt.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			values = append(values, p)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
