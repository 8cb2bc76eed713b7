package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultTimeoutSeconds bounds a single prediction call.
	DefaultTimeoutSeconds = 30

	configDirName  = ".folio"
	configFileName = "config.json"
)

// Config represents the application configuration
type Config struct {
	Flowise   FlowiseConfig   `json:"flowise"`
	Assistant AssistantConfig `json:"assistant"`
	LogLevel  string          `json:"log_level"`
	LogFormat string          `json:"log_format"`
	LogFile   string          `json:"log_file"`
}

// FlowiseConfig holds the prediction endpoint settings
type FlowiseConfig struct {
	APIHost        string `json:"api_host"`
	ChatflowID     string `json:"chatflow_id"`
	APIKey         string `json:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// AssistantConfig holds the presentation of the chat assistant
type AssistantConfig struct {
	BotName            string   `json:"bot_name"`
	BotSubtitle        string   `json:"bot_subtitle"`
	WelcomeMessage     string   `json:"welcome_message"`
	SuggestedQuestions []string `json:"suggested_questions"`
}

// Default returns a configuration with default values
func Default() Config {
	return Config{
		Flowise: FlowiseConfig{
			APIHost:        "",
			ChatflowID:     "",
			APIKey:         "",
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Assistant: AssistantConfig{
			BotName:        "Portfolio Assistant",
			BotSubtitle:    "Ask me anything",
			WelcomeMessage: "Hey! I'm an AI assistant built into this portfolio. Ask me about projects, skills, experience, or anything else!",
			SuggestedQuestions: []string{
				"What are the key skills?",
				"Tell me about the projects",
				"How can I get in touch?",
			},
		},
		LogLevel:  "info",
		LogFormat: "json",
		LogFile:   "",
	}
}

// Load loads configuration from the specified path
// If the file doesn't exist, creates one with default values
func Load(configPath string) (Config, error) {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return Config{}, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := Save(configPath, cfg); err != nil {
				return Config{}, fmt.Errorf("failed to create default config: %w", err)
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	// Unmarshal over defaults so keys missing from older files keep sane values.
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Flowise.TimeoutSeconds == 0 {
		cfg.Flowise.TimeoutSeconds = DefaultTimeoutSeconds
	}

	return cfg, nil
}

// Save saves the configuration to the specified path
func Save(configPath string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ApplyEnv overrides file values with FOLIO_* environment variables.
// lookup is os.LookupEnv outside of tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("FOLIO_FLOWISE_API_HOST"); ok && strings.TrimSpace(v) != "" {
		c.Flowise.APIHost = strings.TrimSpace(v)
	}
	if v, ok := lookup("FOLIO_FLOWISE_CHATFLOW_ID"); ok && strings.TrimSpace(v) != "" {
		c.Flowise.ChatflowID = strings.TrimSpace(v)
	}
	if v, ok := lookup("FOLIO_FLOWISE_API_KEY"); ok {
		c.Flowise.APIKey = strings.TrimSpace(v)
	}
	if v, ok := lookup("FOLIO_FLOWISE_TIMEOUT_SECONDS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid FOLIO_FLOWISE_TIMEOUT_SECONDS %q: %w", v, err)
		}
		c.Flowise.TimeoutSeconds = n
	}
	if v, ok := lookup("FOLIO_LOG_LEVEL"); ok && strings.TrimSpace(v) != "" {
		c.LogLevel = strings.TrimSpace(v)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	host := strings.TrimSpace(c.Flowise.APIHost)
	if host == "" {
		return fmt.Errorf("flowise api_host is required (set in config file or FOLIO_FLOWISE_API_HOST)")
	}
	u, err := url.Parse(host)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("flowise api_host must be an http(s) URL, got: %q", c.Flowise.APIHost)
	}

	if strings.TrimSpace(c.Flowise.ChatflowID) == "" {
		return fmt.Errorf("flowise chatflow_id is required (set in config file or FOLIO_FLOWISE_CHATFLOW_ID)")
	}

	if c.Flowise.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be positive, got: %d", c.Flowise.TimeoutSeconds)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log_level: %s", c.LogLevel)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "text":
	default:
		return fmt.Errorf("unsupported log_format: %s", c.LogFormat)
	}

	return nil
}

// Redacted returns a copy safe for printing, with the API key masked.
func (c Config) Redacted() Config {
	out := c
	out.Assistant.SuggestedQuestions = append([]string(nil), c.Assistant.SuggestedQuestions...)
	if key := c.Flowise.APIKey; key != "" {
		if len(key) > 4 {
			out.Flowise.APIKey = strings.Repeat("*", len(key)-4) + key[len(key)-4:]
		} else {
			out.Flowise.APIKey = strings.Repeat("*", len(key))
		}
	}
	return out
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, configFileName)
	}
	return filepath.Join(homeDir, configDirName, configFileName)
}
