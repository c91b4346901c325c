// Package config loads AI-provider settings (provider, API key, model
// defaults) the driver falls back to when a CLI flag is left unset,
// following the teacher's viper-backed JSON config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds the AI provider settings the driver (C12) reads when
// a CLI flag is not supplied.
type Config struct {
	AIProvider    string  `json:"ai_provider" mapstructure:"ai_provider"`       // openai, openrouter, gemini, local
	APIKey        string  `json:"api_key" mapstructure:"api_key"`               // API key, or empty for a local provider
	LocalEndpoint string  `json:"local_endpoint" mapstructure:"local_endpoint"` // for the local provider
	Model         string  `json:"model" mapstructure:"model"`                   // primary model id
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`       // base temperature; the retry ladder overrides per rung
	NoFallback    bool    `json:"no_fallback" mapstructure:"no_fallback"`
	Failsoft      bool    `json:"failsoft" mapstructure:"failsoft"`
	LogLevel      string  `json:"log_level" mapstructure:"log_level"` // info, debug
}

var (
	configPath = "config.json"
	instance   *Config
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		AIProvider:    "openai",
		APIKey:        "",
		LocalEndpoint: "http://localhost:11434",
		Model:         "gpt-4o",
		Temperature:   0.0,
		NoFallback:    false,
		Failsoft:      false,
		LogLevel:      "info",
	}
}

// Exists reports whether a config file is present at configPath.
func Exists() bool {
	_, err := os.Stat(configPath)
	return err == nil
}

// Load reads the configuration from config.json, falling back to
// Default when no file is present. Environment variables of the form
// PARALLELBOOK_<KEY> override file values (e.g. PARALLELBOOK_API_KEY).
func Load() (*Config, error) {
	if instance != nil {
		return instance, nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/parallelbook")
	viper.SetEnvPrefix("parallelbook")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			instance = Default()
			return instance, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	instance = cfg
	return instance, nil
}

// Save writes the configuration to config.json.
func (c *Config) Save() error {
	configDir := filepath.Dir(configPath)
	if configDir != "." && configDir != "" {
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	viper.Set("ai_provider", c.AIProvider)
	viper.Set("api_key", c.APIKey)
	viper.Set("local_endpoint", c.LocalEndpoint)
	viper.Set("model", c.Model)
	viper.Set("temperature", c.Temperature)
	viper.Set("no_fallback", c.NoFallback)
	viper.Set("failsoft", c.Failsoft)
	viper.Set("log_level", c.LogLevel)

	if err := viper.WriteConfigAs(configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
