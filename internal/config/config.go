package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/simonyos/whisper/internal/llm"
)

// Config holds all application configuration
type Config struct {
	// API Keys
	OpenAIKey    string `json:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	GeminiKey    string `json:"gemini_api_key,omitempty" mapstructure:"gemini_api_key"`
	GroqKey      string `json:"groq_api_key,omitempty" mapstructure:"groq_api_key"`
	GitHubToken  string `json:"github_token,omitempty" mapstructure:"github_token"`
	AnthropicKey string `json:"anthropic_api_key,omitempty" mapstructure:"anthropic_api_key"`

	// Model is a registry id such as "openai_4o"
	Model string `json:"model,omitempty" mapstructure:"model"`

	HistoryDir    string `json:"history_dir,omitempty" mapstructure:"history_dir"`
	Timeout       string `json:"timeout,omitempty" mapstructure:"timeout"`
	HistoryWindow int    `json:"history_window,omitempty" mapstructure:"history_window"`
	PageSize      int    `json:"page_size,omitempty" mapstructure:"page_size"`
	LogLevel      string `json:"log_level,omitempty" mapstructure:"log_level"`

	// Rules are extra instructions appended to the system prompt
	Rules string `json:"rules,omitempty" mapstructure:"rules"`
}

// Defaults
const (
	DefaultModel         = "openai_4o"
	DefaultTimeout       = 2 * time.Minute
	DefaultHistoryWindow = 20
	DefaultPageSize      = 20
	DefaultLogLevel      = "info"
)

// EnvPrefix namespaces environment overrides, e.g. WHISPER_MODEL
const EnvPrefix = "WHISPER"

// vendorEnv lists the conventional variable each vendor key falls back to
var vendorEnv = map[string]string{
	llm.VendorOpenAI:    "OPENAI_API_KEY",
	llm.VendorGemini:    "GEMINI_API_KEY",
	llm.VendorGroq:      "GROQ_API_KEY",
	llm.VendorGitHub:    "GITHUB_TOKEN",
	llm.VendorAnthropic: "ANTHROPIC_API_KEY",
}

var (
	configDir  string
	configFile string

	mu      sync.RWMutex
	current *Config
)

func init() {
	// Use ~/.config/whisper for config
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configDir = filepath.Join(home, ".config", "whisper")
	configFile = filepath.Join(configDir, "config.json")
}

// newViper builds a viper instance over the config file with defaults and env binding
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("json")

	v.SetDefault("openai_api_key", "")
	v.SetDefault("gemini_api_key", "")
	v.SetDefault("groq_api_key", "")
	v.SetDefault("github_token", "")
	v.SetDefault("anthropic_api_key", "")
	v.SetDefault("model", DefaultModel)
	v.SetDefault("history_dir", filepath.Join(configDir, "history"))
	v.SetDefault("timeout", DefaultTimeout.String())
	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("page_size", DefaultPageSize)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("rules", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfig(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Load reads the config from disk
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if current != nil {
		return current, nil
	}

	cfg, err := readConfig(newViper())
	if err != nil {
		return nil, err
	}
	current = cfg
	return current, nil
}

// Reload drops the cached config and reads it again
func Reload() (*Config, error) {
	mu.Lock()
	current = nil
	mu.Unlock()
	return Load()
}

// Save writes the config to disk
func Save(cfg *Config) error {
	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return nil
}

// Get returns the current config, loading if necessary
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return &Config{
			Model:         DefaultModel,
			HistoryDir:    filepath.Join(configDir, "history"),
			Timeout:       DefaultTimeout.String(),
			HistoryWindow: DefaultHistoryWindow,
			PageSize:      DefaultPageSize,
			LogLevel:      DefaultLogLevel,
		}
	}
	return cfg
}

// Set updates a config value by key
func Set(key, value string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	updated := *cfg

	switch key {
	case "openai_api_key", "openai":
		updated.OpenAIKey = value
	case "gemini_api_key", "gemini":
		updated.GeminiKey = value
	case "groq_api_key", "groq":
		updated.GroqKey = value
	case "github_token", "github":
		updated.GitHubToken = value
	case "anthropic_api_key", "anthropic":
		updated.AnthropicKey = value
	case "model":
		updated.Model = value
	case "history_dir":
		updated.HistoryDir = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout %q: %w", value, err)
		}
		updated.Timeout = value
	case "history_window":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid history_window %q", value)
		}
		updated.HistoryWindow = n
	case "page_size":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid page_size %q", value)
		}
		updated.PageSize = n
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log_level %q", value)
		}
		updated.LogLevel = value
	case "rules":
		updated.Rules = value
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(&updated)
}

// Value returns a single config value by key, with API keys masked
func Value(key string) (string, error) {
	cfg := Get()
	switch key {
	case "openai_api_key", "openai":
		return maskIfSet(cfg.APIKey(llm.VendorOpenAI)), nil
	case "gemini_api_key", "gemini":
		return maskIfSet(cfg.APIKey(llm.VendorGemini)), nil
	case "groq_api_key", "groq":
		return maskIfSet(cfg.APIKey(llm.VendorGroq)), nil
	case "github_token", "github":
		return maskIfSet(cfg.APIKey(llm.VendorGitHub)), nil
	case "anthropic_api_key", "anthropic":
		return maskIfSet(cfg.APIKey(llm.VendorAnthropic)), nil
	case "model":
		return cfg.Model, nil
	case "history_dir":
		return cfg.HistoryDir, nil
	case "timeout":
		return cfg.TimeoutDuration().String(), nil
	case "history_window":
		return strconv.Itoa(cfg.HistoryWindow), nil
	case "page_size":
		return strconv.Itoa(cfg.PageSize), nil
	case "log_level":
		return cfg.LogLevel, nil
	case "rules":
		return cfg.Rules, nil
	default:
		return "", fmt.Errorf("unknown config key: %s", key)
	}
}

// Delete removes a config value
func Delete(key string) error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	updated := *cfg

	switch key {
	case "openai_api_key", "openai":
		updated.OpenAIKey = ""
	case "gemini_api_key", "gemini":
		updated.GeminiKey = ""
	case "groq_api_key", "groq":
		updated.GroqKey = ""
	case "github_token", "github":
		updated.GitHubToken = ""
	case "anthropic_api_key", "anthropic":
		updated.AnthropicKey = ""
	case "model":
		updated.Model = ""
	case "history_dir":
		updated.HistoryDir = ""
	case "timeout":
		updated.Timeout = ""
	case "history_window":
		updated.HistoryWindow = 0
	case "page_size":
		updated.PageSize = 0
	case "log_level":
		updated.LogLevel = ""
	case "rules":
		updated.Rules = ""
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}

	return Save(&updated)
}

// APIKey returns the key for a vendor (config or env)
func (c *Config) APIKey(vendor string) string {
	var key string
	switch vendor {
	case llm.VendorOpenAI:
		key = c.OpenAIKey
	case llm.VendorGemini:
		key = c.GeminiKey
	case llm.VendorGroq:
		key = c.GroqKey
	case llm.VendorGitHub:
		key = c.GitHubToken
	case llm.VendorAnthropic:
		key = c.AnthropicKey
	}
	if key != "" {
		return key
	}
	if env, ok := vendorEnv[vendor]; ok {
		return os.Getenv(env)
	}
	return ""
}

// TimeoutDuration parses Timeout, falling back to the default
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return configFile
}

// ConfigDir returns the directory holding the config file
func ConfigDir() string {
	return configDir
}

// ListKeys returns configured keys (masked for display)
func ListKeys() map[string]string {
	cfg := Get()
	result := make(map[string]string)

	fileKeys := map[string]string{
		llm.VendorOpenAI:    cfg.OpenAIKey,
		llm.VendorGemini:    cfg.GeminiKey,
		llm.VendorGroq:      cfg.GroqKey,
		llm.VendorGitHub:    cfg.GitHubToken,
		llm.VendorAnthropic: cfg.AnthropicKey,
	}
	vendors := make([]string, 0, len(fileKeys))
	for vendor := range fileKeys {
		vendors = append(vendors, vendor)
	}
	sort.Strings(vendors)

	for _, vendor := range vendors {
		name := vendor + "_api_key"
		if vendor == llm.VendorGitHub {
			name = "github_token"
		}
		if key := fileKeys[vendor]; key != "" {
			result[name] = maskKey(key)
		} else if env := os.Getenv(vendorEnv[vendor]); env != "" {
			result[name] = maskKey(env) + " (env)"
		}
	}

	if cfg.Model != "" {
		result["model"] = cfg.Model
	}
	if cfg.HistoryDir != "" {
		result["history_dir"] = cfg.HistoryDir
	}
	result["timeout"] = cfg.TimeoutDuration().String()
	result["history_window"] = strconv.Itoa(cfg.HistoryWindow)
	result["page_size"] = strconv.Itoa(cfg.PageSize)
	if cfg.LogLevel != "" {
		result["log_level"] = cfg.LogLevel
	}

	return result
}

// maskKey shows only first 4 and last 4 characters
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func maskIfSet(key string) string {
	if key == "" {
		return ""
	}
	return maskKey(key)
}

// Watch calls fn with the reloaded config whenever the config file changes.
// Events are debounced since editors often write a file in several steps.
func Watch(fn func(*Config)) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		debounceTimer *time.Timer
		debounceMu    sync.Mutex
	)

	v := newViper()
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		debounceMu.Lock()
		defer debounceMu.Unlock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
			cfg, err := Reload()
			if err != nil {
				return
			}
			fn(cfg)
		})
	})
	v.WatchConfig()
	return nil
}
