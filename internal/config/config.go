// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ashureev/ailab/internal/agent"
	"github.com/ashureev/ailab/internal/generator"
)

// Config holds all application configuration.
type Config struct {
	Host               string
	Port               string
	FrontendURL        string
	LogLevel           string
	DBPath             string
	ReportsDir         string
	SessionTTL         time.Duration
	CompletedRetention time.Duration
	NATSURL            string
	PersonasFile       string
	AI                 AIConfig
	ConversationLog    ConversationLogConfig
}

// AIConfig selects the text generation backend.
type AIConfig struct {
	Provider      string
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GroqAPIKey    string
	GroqModel     string
	GroqBaseURL   string
	GRPCAddr      string
	Timeout       time.Duration
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
		Host:               getEnv("HOST", "127.0.0.1"),
		Port:               getEnv("PORT", "8000"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DBPath:             getEnv("DB_PATH", "./data/ailab.db"),
		ReportsDir:         getEnv("REPORTS_DIR", "./reports"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		CompletedRetention: getEnvDuration("COMPLETED_RETENTION", 15*time.Minute),
		NATSURL:            getEnv("NATS_URL", ""),
		PersonasFile:       getEnv("PERSONAS_FILE", ""),
		AI: AIConfig{
			Provider:      strings.ToLower(getEnv("AI_PROVIDER", generator.ProviderGroq)),
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			GroqAPIKey:    getEnv("GROQ_API_KEY", ""),
			GroqModel:     getEnv("GROQ_MODEL", ""),
			GroqBaseURL:   getEnv("GROQ_BASE_URL", ""),
			GRPCAddr:      getEnv("GENERATION_GRPC_ADDR", ""),
			Timeout:       getEnvDuration("GENERATION_TIMEOUT", 30*time.Second),
		},
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
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.ReportsDir == "" {
		return fmt.Errorf("REPORTS_DIR cannot be empty")
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL cannot be negative")
	}
	if c.CompletedRetention < 0 {
		return fmt.Errorf("COMPLETED_RETENTION cannot be negative")
	}
	switch c.AI.Provider {
	case generator.ProviderOpenAI, generator.ProviderGroq, generator.ProviderStatic:
	case generator.ProviderGRPC:
		if c.AI.GRPCAddr == "" {
			return fmt.Errorf("GENERATION_GRPC_ADDR is required when AI_PROVIDER=grpc")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be one of openai, groq, grpc, static; got %q", c.AI.Provider)
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
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

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Generator returns the backend configuration for the selected provider.
func (c *Config) Generator() generator.Config {
	g := generator.Config{
		Provider: c.AI.Provider,
		GRPCAddr: c.AI.GRPCAddr,
		Timeout:  c.AI.Timeout,
	}
	switch c.AI.Provider {
	case generator.ProviderOpenAI:
		g.APIKey, g.Model, g.BaseURL = c.AI.OpenAIAPIKey, c.AI.OpenAIModel, c.AI.OpenAIBaseURL
	case generator.ProviderGroq:
		g.APIKey, g.Model, g.BaseURL = c.AI.GroqAPIKey, c.AI.GroqModel, c.AI.GroqBaseURL
	}
	return g
}

// ConversationLogger returns the logger settings in the form agent expects.
func (c *Config) ConversationLogger() agent.ConversationLogConfig {
	out := agent.ConversationLogConfig{
		Enabled:   c.ConversationLog.Enabled,
		Dir:       c.ConversationLog.Dir,
		QueueSize: c.ConversationLog.QueueSize,
	}
	if c.ConversationLog.GlobalEnabled {
		out.GlobalFile = c.ConversationLog.GlobalPath
	}
	return out
}

// Personas returns the default personas, overlaid with PERSONAS_FILE when set.
func (c *Config) Personas() (agent.Personas, error) {
	base := agent.DefaultPersonas()
	if c.PersonasFile == "" {
		return base, nil
	}
	overlay, err := LoadPersonas(c.PersonasFile)
	if err != nil {
		return agent.Personas{}, err
	}
	return base.Merge(overlay), nil
}

// LoadPersonas decodes a TOML persona overlay. Keys not present in the file
// are left zero.
func LoadPersonas(path string) (agent.Personas, error) {
	var p agent.Personas
	md, err := toml.DecodeFile(path, &p)
	if err != nil {
		return agent.Personas{}, fmt.Errorf("load personas %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return agent.Personas{}, fmt.Errorf("load personas %s: unknown keys %v", path, undecoded)
	}
	return p, nil
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

// getEnvDuration accepts Go durations ("90s") or a bare number of minutes.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Minute
	}
	return fallback
}
