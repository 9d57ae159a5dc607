// Package config handles configuration and personas for llamigo.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Engine names
const (
	EngineLlamaCpp = "llamacpp"
	EngineGemini   = "gemini"
	EngineMock     = "mock"
)

// MarkdownConfig configures markdown rendering options
type MarkdownConfig struct {
	Style            string `json:"style"`             // "dark", "light", "notty" or path to a glamour JSON style
	EnableEmoji      bool   `json:"enable_emoji"`      // Convert :emoji: to unicode
	PreserveNewLines bool   `json:"preserve_newlines"` // Preserve original line breaks
	TableWrap        bool   `json:"table_wrap"`        // Enable word wrap in table cells
}

// Config represents the user configuration
type Config struct {
	// Engine selects the inference backend: llamacpp, gemini or mock.
	Engine string `json:"engine"`
	// Model is the model path (llamacpp) or model name (gemini).
	Model string `json:"model"`
	// BaseURL is the llama.cpp server address or a Gemini API override.
	BaseURL string `json:"base_url,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
	// Persona names the system prompt sent with every request.
	Persona string `json:"persona,omitempty"`
	// MaxTurns bounds how many past exchanges the engine replays.
	MaxTurns int `json:"max_turns"`

	HistoryEnabled bool   `json:"history_enabled"`
	HistoryBackend string `json:"history_backend"` // "file" or "badger"

	// Verbose enables debug logging.
	Verbose         bool           `json:"verbose"`
	CopyToClipboard bool           `json:"copy_to_clipboard"`
	Theme           string         `json:"theme,omitempty"` // TUI color theme
	Markdown        MarkdownConfig `json:"markdown,omitempty"`
}

// DefaultMarkdownConfig returns the default markdown configuration
func DefaultMarkdownConfig() MarkdownConfig {
	return MarkdownConfig{
		Style:            "dark",
		EnableEmoji:      true,
		PreserveNewLines: true,
		TableWrap:        true,
	}
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Engine:          EngineLlamaCpp,
		Model:           "",
		BaseURL:         "http://127.0.0.1:8080",
		Persona:         "default",
		MaxTurns:        16,
		HistoryEnabled:  true,
		HistoryBackend:  "file",
		Verbose:         false,
		CopyToClipboard: false,
		Theme:           "tokyonight",
		Markdown:        DefaultMarkdownConfig(),
	}
}

// Validate reports settings that cannot work
func (c Config) Validate() error {
	switch c.Engine {
	case EngineLlamaCpp, EngineGemini, EngineMock:
	default:
		return fmt.Errorf("unknown engine %q (available: %s)", c.Engine, strings.Join(AvailableEngines(), ", "))
	}
	switch c.HistoryBackend {
	case "file", "badger":
	default:
		return fmt.Errorf("unknown history backend %q (use file or badger)", c.HistoryBackend)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must not be negative")
	}
	return nil
}

// ApplyEnv overrides settings from the environment
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LLAMIGO_ENGINE"); v != "" {
		c.Engine = v
	}
	if v := os.Getenv("LLAMIGO_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("LLAMIGO_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("LLAMIGO_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Engine == EngineGemini && c.APIKey == "" {
		c.APIKey = v
	}
	if v := os.Getenv("GLAMOUR_STYLE"); v != "" {
		c.Markdown.Style = v
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, ".llamigo"), nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	// 0o700: the directory holds API keys and history
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// GetConfigPath returns the path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.json"), nil
}

// GetLogPath returns the path to the log file used by the chat TUI
func GetLogPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "llamigo.log"), nil
}

// LoadConfig loads the configuration from disk and applies environment
// overrides.
func LoadConfig() (Config, error) {
	cfg, err := LoadFileConfig()
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFileConfig loads the configuration file without environment
// overrides. A missing file yields the defaults.
func LoadFileConfig() (Config, error) {
	cfg := DefaultConfig()

	configPath, err := GetConfigPath()
	if err != nil {
		return cfg, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// SaveConfig saves the configuration to disk
func SaveConfig(cfg Config) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0o600: the file may hold an API key
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// AvailableEngines returns the engine names accepted by --engine
func AvailableEngines() []string {
	return []string{
		EngineLlamaCpp,
		EngineGemini,
		EngineMock,
	}
}
