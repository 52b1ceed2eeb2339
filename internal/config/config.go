// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string

	DBPath      string
	DatabaseURL string // selects Postgres when set

	DocumentsDir string
	ResumeBucket string // selects S3 when set

	ParamPrefix string // enables SSM Parameter Store secrets when set

	LLM             LLMConfig
	VectorIndexAddr string

	Interview InterviewConfig

	MaxUploadBytes     int64
	RateLimitPerMinute int
	GuestRetention     time.Duration
	GuestSweepInterval time.Duration

	ConversationLog ConversationLogConfig
}

// LLMConfig selects the text generation provider and speech settings.
// Narration always goes through OpenAI.
type LLMConfig struct {
	Provider string

	OpenAIAPIKey      string
	OpenAIAPIKeyFile  string
	OpenAIAPIKeyParam string
	OpenAIBaseURL     string
	OpenAIModel       string

	TTSModel        string
	TTSVoice        string
	TTSFormat       string
	TTSInstructions string

	GeminiAPIKey      string
	GeminiAPIKeyFile  string
	GeminiAPIKeyParam string
	GeminiModel       string
}

// InterviewConfig bounds interviews.
type InterviewConfig struct {
	MaxQuestions int
	HistoryLimit int
}

// ConversationLogConfig controls JSON conversation logging.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		FrontendURL:  getEnv("FRONTEND_URL", ""),
		DBPath:       getEnv("DB_PATH", "./data/career.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DocumentsDir: getEnv("DOCUMENTS_DIR", "./data/resumes"),
		ResumeBucket: getEnv("RESUME_BUCKET", ""),
		ParamPrefix:  getEnv("PARAM_PREFIX", ""),
		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", ProviderOpenAI)),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIAPIKeyFile:  getEnv("OPENAI_API_KEY_FILE", ""),
			OpenAIAPIKeyParam: getEnv("OPENAI_API_KEY_PARAM", "openai-api-key"),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			TTSModel:          getEnv("TTS_MODEL", "gpt-4o-mini-tts"),
			TTSVoice:          getEnv("TTS_VOICE", "coral"),
			TTSFormat:         getEnv("TTS_FORMAT", "mp3"),
			TTSInstructions:   getEnv("TTS_INSTRUCTIONS", "Speak clearly and naturally"),
			GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
			GeminiAPIKeyFile:  getEnv("GEMINI_API_KEY_FILE", ""),
			GeminiAPIKeyParam: getEnv("GEMINI_API_KEY_PARAM", "gemini-api-key"),
			GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		VectorIndexAddr: getEnv("VECTOR_INDEX_ADDR", ""),
		Interview: InterviewConfig{
			MaxQuestions: getEnvInt("INTERVIEW_MAX_QUESTIONS", 4),
			HistoryLimit: getEnvInt("INTERVIEW_HISTORY_LIMIT", 0),
		},
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 10),
		GuestRetention:     getEnvDuration("GUEST_RETENTION", 24*time.Hour),
		GuestSweepInterval: getEnvDuration("GUEST_SWEEP_INTERVAL", time.Hour),
		ConversationLog: ConversationLogConfig{
			Enabled:       getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:           getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			GlobalEnabled: getEnvBool("CONVERSATION_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("CONVERSATION_LOG_GLOBAL_PATH", "./data/logs/conversations/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" && c.DatabaseURL == "" {
		return fmt.Errorf("DB_PATH or DATABASE_URL must be set")
	}
	if c.DocumentsDir == "" && c.ResumeBucket == "" {
		return fmt.Errorf("DOCUMENTS_DIR or RESUME_BUCKET must be set")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderGemini, c.LLM.Provider)
	}
	if c.Interview.MaxQuestions < 1 {
		return fmt.Errorf("INTERVIEW_MAX_QUESTIONS must be >= 1")
	}
	if c.Interview.HistoryLimit < 0 {
		return fmt.Errorf("INTERVIEW_HISTORY_LIMIT must be >= 0")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}
	if c.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be > 0")
	}
	if c.GuestRetention <= 0 || c.GuestSweepInterval <= 0 {
		return fmt.Errorf("GUEST_RETENTION and GUEST_SWEEP_INTERVAL must be > 0")
	}
	if c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.GlobalPath == "" {
		return fmt.Errorf("CONVERSATION_LOG_GLOBAL_PATH cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
