// Package config handles configuration loading for convoke.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for convoke.
type Config struct {
	Anthropic    AnthropicConfig    `mapstructure:"anthropic"`
	AWS          AWSConfig          `mapstructure:"aws"`
	Models       ModelsConfig       `mapstructure:"models"`
	Timeouts     TimeoutsConfig     `mapstructure:"timeouts"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	TUI          TUIConfig          `mapstructure:"tui"`
	Prompts      PromptsConfig      `mapstructure:"prompts"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AWSConfig holds the Bedrock backend settings.
type AWSConfig struct {
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// Region is the AWS region for Bedrock calls.
	Region string `mapstructure:"region"`
	// Profile selects a shared-credentials profile.
	Profile string `mapstructure:"profile"`
}

// ModelsConfig holds model selection settings.
type ModelsConfig struct {
	// Planner is the model used for plan and re-plan requests.
	Planner string `mapstructure:"planner"`
	// Verdict is the model used for the final synthesis.
	Verdict string `mapstructure:"verdict"`
	// Default is the model for agents whose spec names none.
	Default string `mapstructure:"default"`
	// RoutesFile optionally points to a YAML file mapping agent type
	// keywords to models.
	RoutesFile string `mapstructure:"routes_file"`
}

// TimeoutsConfig holds per-stage timeout settings.
type TimeoutsConfig struct {
	// Agent bounds one agent invocation (primary or fallback).
	Agent time.Duration `mapstructure:"agent"`
	// Plan bounds one planning or re-planning call.
	Plan time.Duration `mapstructure:"plan"`
	// Verdict bounds the final synthesis call.
	Verdict time.Duration `mapstructure:"verdict"`
}

// OrchestratorConfig holds scheduling settings.
type OrchestratorConfig struct {
	// MaxReplans bounds how many corrected plans one run may request.
	MaxReplans int `mapstructure:"max_replans"`
	// EventBuffer is the capacity of the run event stream.
	EventBuffer int `mapstructure:"event_buffer"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	// Disable forces plain output even on a terminal.
	Disable bool `mapstructure:"disable"`
	// RefreshRate is the TUI redraw interval.
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// PromptsConfig holds prompt override settings.
type PromptsConfig struct {
	// Dir points to a directory of prompt override files, watched for
	// changes while running.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.convoke.yaml in current directory or parent)
// 3. User config (~/.config/convoke/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("aws.use_bedrock", "CONVOKE_USE_BEDROCK")
	v.BindEnv("aws.region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("aws.use_bedrock", cfg.AWS.UseBedrock)
	v.Set("aws.region", cfg.AWS.Region)
	v.Set("aws.profile", cfg.AWS.Profile)
	v.Set("models.planner", cfg.Models.Planner)
	v.Set("models.verdict", cfg.Models.Verdict)
	v.Set("models.default", cfg.Models.Default)
	v.Set("models.routes_file", cfg.Models.RoutesFile)
	v.Set("timeouts.agent", cfg.Timeouts.Agent.String())
	v.Set("timeouts.plan", cfg.Timeouts.Plan.String())
	v.Set("timeouts.verdict", cfg.Timeouts.Verdict.String())
	v.Set("orchestrator.max_replans", cfg.Orchestrator.MaxReplans)
	v.Set("orchestrator.event_buffer", cfg.Orchestrator.EventBuffer)
	v.Set("tui.disable", cfg.TUI.Disable)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())
	v.Set("prompts.dir", cfg.Prompts.Dir)

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
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("aws.use_bedrock", false)
	v.SetDefault("aws.region", "")
	v.SetDefault("aws.profile", "")

	v.SetDefault("models.planner", "")
	v.SetDefault("models.verdict", "")
	v.SetDefault("models.default", "")
	v.SetDefault("models.routes_file", "")

	v.SetDefault("timeouts.agent", "5m")
	v.SetDefault("timeouts.plan", "2m")
	v.SetDefault("timeouts.verdict", "2m")

	v.SetDefault("orchestrator.max_replans", 1)
	v.SetDefault("orchestrator.event_buffer", 64)

	v.SetDefault("tui.disable", false)
	v.SetDefault("tui.refresh_rate", "100ms")

	v.SetDefault("prompts.dir", "")
}

// getUserConfigDir returns the XDG config directory for convoke.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "convoke")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "convoke")
	}
	return filepath.Join(home, ".config", "convoke")
}

// findProjectConfig searches for .convoke.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".convoke.yaml")
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

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Timeouts: TimeoutsConfig{
			Agent:   5 * time.Minute,
			Plan:    2 * time.Minute,
			Verdict: 2 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			MaxReplans:  1,
			EventBuffer: 64,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}
