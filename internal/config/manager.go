package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultGapThreshold is the inactivity gap (seconds) that separates two
// conversational sessions unless the store carries its own setting.
const DefaultGapThreshold int64 = 1800

// DefaultLaughKeywords seed the laugh analyzer when the user has not
// configured their own list.
var DefaultLaughKeywords = []string{"哈哈", "hh", "lol", "lmao", "233", "xswl", "笑死", "haha"}

// Config holds the user's persistent configuration preferences.
type Config struct {
	DataDir       string   `json:"data_dir,omitempty"`       // Directory holding per-session store files
	GapThreshold  int64    `json:"gap_threshold,omitempty"`  // Default session gap threshold in seconds
	LaughKeywords []string `json:"laugh_keywords,omitempty"` // Keywords for the laugh analyzer
	LLMProvider   string   `json:"llm_provider,omitempty"`   // anthropic, openai
	APIKey        string   `json:"api_key,omitempty"`        // API key for the selected provider
	Model         string   `json:"model,omitempty"`          // Model name for summaries
	BaseURL       string   `json:"base_url,omitempty"`       // Optional override for API base URL
}

// Manager handles loading and saving the configuration.
type Manager struct {
	configDir string
}

// NewManager creates a new configuration manager rooted at the user config dir.
func NewManager() (*Manager, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config dir: %w", err)
	}

	return &Manager{
		configDir: filepath.Join(configDir, "chatlens"),
	}, nil
}

// NewManagerAt creates a manager rooted at an explicit directory.
func NewManagerAt(dir string) *Manager {
	return &Manager{configDir: dir}
}

// GetConfigPath returns the absolute path to the config.json file.
func (m *Manager) GetConfigPath() string {
	return filepath.Join(m.configDir, "config.json")
}

// Exists reports whether a config file has been written.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.GetConfigPath())
	return err == nil
}

// Load reads the configuration from disk and fills in defaults.
// If the file does not exist, it returns a default Config and no error.
func (m *Manager) Load() (*Config, error) {
	cfg := &Config{}

	path := m.GetConfigPath()
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config json: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	m.applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Save writes the configuration to disk with restricted permissions.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.GetConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (m *Manager) applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.DataDir = filepath.Join(home, "Documents", "ChatLens", "databases")
	}
	if cfg.GapThreshold <= 0 {
		cfg.GapThreshold = DefaultGapThreshold
	}
	if len(cfg.LaughKeywords) == 0 {
		cfg.LaughKeywords = append([]string(nil), DefaultLaughKeywords...)
	}
}

// LoadEnv loads a .env file if present. Missing files are not an error.
func LoadEnv() {
	_ = godotenv.Load()
}

// applyEnv lets environment variables override file-based settings.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATLENS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("CHATLENS_GAP_THRESHOLD"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.GapThreshold = n
		}
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLMProvider = v
	}
}
