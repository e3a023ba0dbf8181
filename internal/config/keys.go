package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNoAPIKey is returned when no API key is configured.
var ErrNoAPIKey = errors.New("no API key configured")

// Provider names accepted in llm.provider.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// keySpec describes where a provider's key comes from and how it looks.
type keySpec struct {
	env    string
	prefix string
	config func(*Config) string
}

var keySpecs = map[string]keySpec{
	ProviderAnthropic: {env: "ANTHROPIC_API_KEY", prefix: "sk-ant-", config: func(c *Config) string { return c.LLM.APIKey }},
	ProviderOpenAI:    {env: "OPENAI_API_KEY", prefix: "sk-", config: func(c *Config) string { return c.LLM.OpenAIAPIKey }},
}

func specFor(cfg *Config) keySpec {
	provider := ProviderAnthropic
	if cfg != nil && cfg.LLM.Provider != "" {
		provider = cfg.LLM.Provider
	}
	if ks, ok := keySpecs[provider]; ok {
		return ks
	}
	return keySpecs[ProviderAnthropic]
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: environment variable, config file.
func GetAPIKey(cfg *Config) (string, error) {
	key, _ := lookupKey(cfg)
	if key == "" {
		return "", fmt.Errorf("%w (set %s)", ErrNoAPIKey, specFor(cfg).env)
	}
	return key, nil
}

func lookupKey(cfg *Config) (string, KeySource) {
	ks := specFor(cfg)
	if key := os.Getenv(ks.env); key != "" {
		return key, KeySourceEnv
	}
	if cfg != nil {
		if key := os.ExpandEnv(ks.config(cfg)); key != "" && !strings.HasPrefix(key, "${") {
			return key, KeySourceConfig
		}
	}
	return "", KeySourceNone
}

// ValidateAPIKey performs basic format checks on a provider's API key.
// It does not verify the key with the provider.
func ValidateAPIKey(provider, key string) error {
	if key == "" {
		return ErrNoAPIKey
	}

	ks, ok := keySpecs[provider]
	if !ok {
		return fmt.Errorf("unknown provider %q", provider)
	}
	if !strings.HasPrefix(key, ks.prefix) {
		return fmt.Errorf("invalid API key format: expected %q prefix", ks.prefix)
	}
	if len(key) < 20 {
		return errors.New("invalid API key format: key too short")
	}
	return nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 15 {
		return "***"
	}
	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	_, source := lookupKey(cfg)
	return source
}
