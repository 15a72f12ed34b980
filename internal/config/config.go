package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64
	LogLevel           string

	// Screenshot handling
	MaxScreenshotBytes  int64
	MaxScreenshotPixels int64
	TargetWidth         int
	JPEGQuality         int

	// Model service
	ModelProvider string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	GeminiAPIKey  string
	GeminiModel   string
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// LoadFromEnv reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment variables win.
func LoadFromEnv() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 60*time.Second),
		AnalysisTimeout:    parseDurationOrDefault("ANALYSIS_TIMEOUT", 45*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "info"),

		MaxScreenshotBytes:  parseIntOrDefault("MAX_SCREENSHOT_BYTES", 4.5*1024*1024),
		MaxScreenshotPixels: parseIntOrDefault("MAX_SCREENSHOT_PIXELS", 268402689), // 16383x16383
		TargetWidth:         int(parseIntOrDefault("TARGET_WIDTH", 800)),
		JPEGQuality:         int(parseIntOrDefault("JPEG_QUALITY", 65)),

		ModelProvider: strings.ToLower(getEnvOrDefault("MODEL_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		GeminiModel:   getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.RequestTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, analysis=%s)",
			c.RequestTimeout, c.AnalysisTimeout)
	}
	if c.MaxScreenshotBytes <= 0 {
		return fmt.Errorf("MAX_SCREENSHOT_BYTES must be > 0 (got %d)", c.MaxScreenshotBytes)
	}
	if c.MaxScreenshotPixels <= 0 {
		return fmt.Errorf("MAX_SCREENSHOT_PIXELS must be > 0 (got %d)", c.MaxScreenshotPixels)
	}
	// The body cap must leave room for the screenshot itself, otherwise the
	// size guard could never answer.
	if c.MaxRequestBodySize < c.MaxScreenshotBytes {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE (%d) must be >= MAX_SCREENSHOT_BYTES (%d)",
			c.MaxRequestBodySize, c.MaxScreenshotBytes)
	}
	if c.TargetWidth <= 0 {
		return fmt.Errorf("TARGET_WIDTH must be > 0 (got %d)", c.TargetWidth)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("JPEG_QUALITY must be between 1 and 100 (got %d)", c.JPEGQuality)
	}
	switch c.ModelProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.ModelProvider)
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.ModelProvider)
		}
	default:
		return fmt.Errorf("unsupported MODEL_PROVIDER: %q", c.ModelProvider)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
