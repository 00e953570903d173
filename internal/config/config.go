package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"

	"buchhaltung/internal/logger"
)

// Config is built once at startup and handed to each component constructor.
type Config struct {
	Database  DatabaseConfig
	Paperless PaperlessConfig
	AI        AIConfig
	Google    GoogleConfig
	Sheets    SheetsConfig
	Server    ServerConfig
	Import    ImportConfig
	Matching  MatchingConfig

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// DatabaseConfig selects the gorm dialect. Driver is one of postgres, mysql, sqlite.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// PaperlessConfig points at a Paperless-ngx instance. An empty BaseURL disables the archive.
type PaperlessConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Enabled reports whether an archive is configured.
func (p PaperlessConfig) Enabled() bool {
	return p.BaseURL != ""
}

// AIConfig selects the AI backend. Provider is one of openai, ollama, anthropic or
// empty (disabled). Extractor is prompt or documentai.
type AIConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxRetries  int
	Extractor   string
}

// Enabled reports whether an AI provider is configured.
func (a AIConfig) Enabled() bool {
	return a.Provider != ""
}

// GoogleConfig holds Google Cloud settings shared by Document AI, Vision and Sheets.
type GoogleConfig struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
	CredentialsFile  string
	CredentialsJSON  string
}

// HasCredentials reports whether explicit service account credentials are set.
func (g GoogleConfig) HasCredentials() bool {
	return g.CredentialsFile != "" || g.CredentialsJSON != ""
}

// ClientOptions returns the credential options for Google Cloud clients.
// Inline JSON wins over a file; with neither, application default
// credentials apply.
func (g GoogleConfig) ClientOptions() []option.ClientOption {
	switch {
	case g.CredentialsJSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(g.CredentialsJSON))}
	case g.CredentialsFile != "":
		return []option.ClientOption{option.WithCredentialsFile(g.CredentialsFile)}
	default:
		return nil
	}
}

// SheetsConfig locates the spreadsheet holding bank rows.
type SheetsConfig struct {
	URL       string
	BankSheet string
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// ImportConfig holds statement import defaults.
type ImportConfig struct {
	SkipDuplicates bool
}

// MatchingConfig holds reconciliation defaults.
type MatchingConfig struct {
	BatchLimit int
}

func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
			DSN:    getEnv("DB_DSN", ""),
		},
		Paperless: PaperlessConfig{
			BaseURL: strings.TrimRight(getEnv("PAPERLESS_URL", ""), "/"),
			Token:   getEnv("PAPERLESS_TOKEN", ""),
			Timeout: getEnvDuration("PAPERLESS_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:    strings.ToLower(getEnv("AI_PROVIDER", "")),
			Model:       getEnv("AI_MODEL", ""),
			APIKey:      getEnv("AI_API_KEY", getEnv("OPENAI_API_KEY", "")),
			BaseURL:     getEnv("AI_BASE_URL", ""),
			Temperature: getEnvFloat("AI_TEMPERATURE", 0.1),
			MaxRetries:  getEnvInt("AI_MAX_RETRIES", 3),
			Extractor:   strings.ToLower(getEnv("AI_EXTRACTOR", "prompt")),
		},
		Google: GoogleConfig{
			ProjectID:        getEnv("GOOGLE_CLOUD_PROJECT", ""),
			Location:         getEnv("GOOGLE_CLOUD_LOCATION", "eu"),
			ProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
			ProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
			CredentialsFile:  getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			CredentialsJSON:  getEnv("GOOGLE_CREDENTIALS", ""),
		},
		Sheets: SheetsConfig{
			URL:       getEnv("GOOGLE_SHEET_URL", ""),
			BankSheet: getEnv("GOOGLE_SHEET_BANK", "Bank"),
		},
		Server: ServerConfig{
			Addr:           getEnv("HTTP_ADDR", ":8080"),
			AllowedOrigins: splitList(getEnv("HTTP_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Import: ImportConfig{
			SkipDuplicates: getEnvBool("IMPORT_SKIP_DUPLICATES", true),
		},
		Matching: MatchingConfig{
			BatchLimit: getEnvInt("MATCH_BATCH_LIMIT", 50),
		},
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:     getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, mysql or sqlite, got %q", c.Database.Driver)
	}
	switch c.AI.Provider {
	case "", "openai", "ollama", "anthropic":
	default:
		return fmt.Errorf("AI_PROVIDER must be openai, ollama or anthropic, got %q", c.AI.Provider)
	}
	switch c.AI.Extractor {
	case "prompt", "documentai":
	default:
		return fmt.Errorf("AI_EXTRACTOR must be prompt or documentai, got %q", c.AI.Extractor)
	}
	if c.AI.Extractor == "documentai" && c.Google.ProjectID == "" {
		return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for AI_EXTRACTOR=documentai")
	}
	if c.Paperless.Enabled() && c.Paperless.Token == "" {
		return fmt.Errorf("PAPERLESS_TOKEN is required when PAPERLESS_URL is set")
	}
	if c.Matching.BatchLimit <= 0 {
		return fmt.Errorf("MATCH_BATCH_LIMIT must be positive")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
