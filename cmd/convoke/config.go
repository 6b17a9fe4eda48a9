package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/convoke/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify convoke configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/convoke/config.yaml
Project-specific overrides can be placed in .convoke.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	// Mask API key if set
	apiKeyDisplay := "(not set)"
	if cfg.Anthropic.APIKey != "" {
		apiKeyDisplay = "****"
	}

	fmt.Printf("anthropic.api_key: %s\n", apiKeyDisplay)
	fmt.Printf("aws.use_bedrock: %t\n", cfg.AWS.UseBedrock)
	fmt.Printf("aws.region: %s\n", cfg.AWS.Region)
	fmt.Printf("aws.profile: %s\n", cfg.AWS.Profile)
	fmt.Printf("models.planner: %s\n", cfg.Models.Planner)
	fmt.Printf("models.verdict: %s\n", cfg.Models.Verdict)
	fmt.Printf("models.default: %s\n", cfg.Models.Default)
	fmt.Printf("models.routes_file: %s\n", cfg.Models.RoutesFile)
	fmt.Printf("timeouts.agent: %s\n", cfg.Timeouts.Agent)
	fmt.Printf("timeouts.plan: %s\n", cfg.Timeouts.Plan)
	fmt.Printf("timeouts.verdict: %s\n", cfg.Timeouts.Verdict)
	fmt.Printf("orchestrator.max_replans: %d\n", cfg.Orchestrator.MaxReplans)
	fmt.Printf("orchestrator.event_buffer: %d\n", cfg.Orchestrator.EventBuffer)
	fmt.Printf("tui.disable: %t\n", cfg.TUI.Disable)
	fmt.Printf("tui.refresh_rate: %s\n", cfg.TUI.RefreshRate)
	fmt.Printf("prompts.dir: %s\n", cfg.Prompts.Dir)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	switch key {
	case "anthropic.api_key":
		if cfg.Anthropic.APIKey != "" {
			fmt.Println("****")
		} else {
			fmt.Println("(not set)")
		}
	case "aws.use_bedrock":
		fmt.Println(cfg.AWS.UseBedrock)
	case "aws.region":
		fmt.Println(cfg.AWS.Region)
	case "aws.profile":
		fmt.Println(cfg.AWS.Profile)
	case "models.planner":
		fmt.Println(cfg.Models.Planner)
	case "models.verdict":
		fmt.Println(cfg.Models.Verdict)
	case "models.default":
		fmt.Println(cfg.Models.Default)
	case "models.routes_file":
		fmt.Println(cfg.Models.RoutesFile)
	case "timeouts.agent":
		fmt.Println(cfg.Timeouts.Agent)
	case "timeouts.plan":
		fmt.Println(cfg.Timeouts.Plan)
	case "timeouts.verdict":
		fmt.Println(cfg.Timeouts.Verdict)
	case "orchestrator.max_replans":
		fmt.Println(cfg.Orchestrator.MaxReplans)
	case "orchestrator.event_buffer":
		fmt.Println(cfg.Orchestrator.EventBuffer)
	case "tui.disable":
		fmt.Println(cfg.TUI.Disable)
	case "tui.refresh_rate":
		fmt.Println(cfg.TUI.RefreshRate)
	case "prompts.dir":
		fmt.Println(cfg.Prompts.Dir)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}
}

// setConfigKey updates a configuration value and saves it.
func setConfigKey(cfg *config.Config, key, value string) {
	var err error
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "aws.use_bedrock":
		cfg.AWS.UseBedrock, err = strconv.ParseBool(value)
	case "aws.region":
		cfg.AWS.Region = value
	case "aws.profile":
		cfg.AWS.Profile = value
	case "models.planner":
		cfg.Models.Planner = value
	case "models.verdict":
		cfg.Models.Verdict = value
	case "models.default":
		cfg.Models.Default = value
	case "models.routes_file":
		cfg.Models.RoutesFile = value
	case "timeouts.agent":
		cfg.Timeouts.Agent, err = time.ParseDuration(value)
	case "timeouts.plan":
		cfg.Timeouts.Plan, err = time.ParseDuration(value)
	case "timeouts.verdict":
		cfg.Timeouts.Verdict, err = time.ParseDuration(value)
	case "orchestrator.max_replans":
		cfg.Orchestrator.MaxReplans, err = strconv.Atoi(value)
	case "orchestrator.event_buffer":
		cfg.Orchestrator.EventBuffer, err = strconv.Atoi(value)
	case "tui.disable":
		cfg.TUI.Disable, err = strconv.ParseBool(value)
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = time.ParseDuration(value)
	case "prompts.dir":
		cfg.Prompts.Dir = value
	default:
		fmt.Fprintf(os.Stderr, "Unknown config key: %s\n", key)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid value for %s: %v\n", key, err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Set %s = %s\n", key, value)
}
