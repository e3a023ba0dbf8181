// Package config handles configuration loading and management for dagforge.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ProjectConfigName is the project-level override file searched for from the
// working directory upwards.
const ProjectConfigName = ".dagforge.yaml"

// Config holds all configuration for dagforge.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"`
	Semantic SemanticConfig `mapstructure:"semantic"`
	Repair   RepairConfig   `mapstructure:"repair"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// LLMConfig selects and configures the model used to propose fixes.
type LLMConfig struct {
	Provider          string `mapstructure:"provider" validate:"oneof=anthropic openai"`
	Model             string `mapstructure:"model"`
	APIKey            string `mapstructure:"api_key"`
	OpenAIAPIKey      string `mapstructure:"openai_api_key"`
	BaseURL           string `mapstructure:"base_url" validate:"omitempty,url"`
	UseBedrock        bool   `mapstructure:"use_bedrock"`
	AWSRegion         string `mapstructure:"aws_region"`
	AWSProfile        string `mapstructure:"aws_profile"`
	MaxTokens         int    `mapstructure:"max_tokens" validate:"gte=256,lte=64000"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" validate:"gte=0"`
}

// SemanticConfig selects where semantic validation runs.
type SemanticConfig struct {
	// Mode is local (in-process checker), remote (HTTP service) or off.
	Mode    string        `mapstructure:"mode" validate:"oneof=local remote off"`
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// RepairConfig holds repair loop settings.
type RepairConfig struct {
	MaxIterations   int           `mapstructure:"max_iterations" validate:"gte=1,lte=5"`
	ProposerTimeout time.Duration `mapstructure:"proposer_timeout" validate:"gt=0"`
}

// HistoryConfig controls repair-run persistence.
type HistoryConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the SQLite file; empty selects the XDG data directory.
	Path string `mapstructure:"path"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

var validate = validator.New()

// Validate checks field ranges and enumerations.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Semantic.Mode == "remote" && c.Semantic.URL == "" {
		return errors.New("invalid config: semantic.url is required when semantic.mode is remote")
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, OPENAI_API_KEY, DAGFORGE_*)
// 2. Project config (.dagforge.yaml in current directory or parent)
// 3. User config (~/.config/dagforge/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

// newViper builds the layered viper instance used by Load and Get.
func newViper() (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("dagforge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("llm.openai_api_key", "OPENAI_API_KEY")
	_ = v.BindEnv("semantic.url", "DAGFORGE_SEMANTIC_URL")

	return v, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.LLM.OpenAIAPIKey = expandEnv(cfg.LLM.OpenAIAPIKey)
	return cfg, nil
}

// Get returns the effective value of a dotted key such as "repair.max_iterations".
func Get(key string) (any, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}
	if !v.IsSet(key) {
		return nil, fmt.Errorf("unknown config key %q", key)
	}
	return v.Get(key), nil
}

// Keys returns every known config key in sorted order.
func Keys() []string {
	v := viper.New()
	setDefaults(v)
	keys := v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Set writes a single key to the user config file, keeping other entries.
func Set(key, value string) error {
	if !isKnownKey(key) {
		return fmt.Errorf("unknown config key %q", key)
	}

	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading user config: %w", err)
		}
	}
	v.Set(key, value)

	check := viper.New()
	setDefaults(check)
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return fmt.Errorf("merging config: %w", err)
	}
	cfg, err := decode(check)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	return v.WriteConfigAs(path)
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	path := GetUserConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("llm.provider", cfg.LLM.Provider)
	v.Set("llm.model", cfg.LLM.Model)
	v.Set("llm.api_key", cfg.LLM.APIKey)
	v.Set("llm.openai_api_key", cfg.LLM.OpenAIAPIKey)
	v.Set("llm.base_url", cfg.LLM.BaseURL)
	v.Set("llm.use_bedrock", cfg.LLM.UseBedrock)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("llm.max_tokens", cfg.LLM.MaxTokens)
	v.Set("llm.requests_per_minute", cfg.LLM.RequestsPerMinute)
	v.Set("semantic.mode", cfg.Semantic.Mode)
	v.Set("semantic.url", cfg.Semantic.URL)
	v.Set("semantic.timeout", cfg.Semantic.Timeout.String())
	v.Set("repair.max_iterations", cfg.Repair.MaxIterations)
	v.Set("repair.proposer_timeout", cfg.Repair.ProposerTimeout.String())
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.path", cfg.History.Path)
	v.Set("server.addr", cfg.Server.Addr)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.openai_api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.use_bedrock", false)
	v.SetDefault("llm.aws_region", "")
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("llm.max_tokens", 8192)
	v.SetDefault("llm.requests_per_minute", 0)

	v.SetDefault("semantic.mode", "local")
	v.SetDefault("semantic.url", "")
	v.SetDefault("semantic.timeout", "5s")

	v.SetDefault("repair.max_iterations", 3)
	v.SetDefault("repair.proposer_timeout", "60s")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "")

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func isKnownKey(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

// getUserConfigDir returns the XDG config directory for dagforge.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dagforge")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "dagforge")
	}
	return filepath.Join(home, ".config", "dagforge")
}

// findProjectConfig searches for .dagforge.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:  "anthropic",
			MaxTokens: 8192,
		},
		Semantic: SemanticConfig{
			Mode:    "local",
			Timeout: 5 * time.Second,
		},
		Repair: RepairConfig{
			MaxIterations:   3,
			ProposerTimeout: 60 * time.Second,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
