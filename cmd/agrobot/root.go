package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/agrobot/internal/cli"
	"github.com/aretw0/agrobot/internal/config"
	"github.com/spf13/cobra"
)

// defaultConfigFile is picked up from the working directory when --config is not set.
const defaultConfigFile = "agrobot.yaml"

var rootCmd = &cobra.Command{
	Use:   "agrobot",
	Short: "Agrobot is an agriculture-only chat assistant",
	Long: `Agrobot answers questions about crops, soil, pests, irrigation and livestock,
optionally with a photo, using a Gemini model. Off-topic questions are refused.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default ./"+defaultConfigFile+" when present)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging on stderr")
}

// loadConfig resolves --config and validates the result.
func loadConfig(cmd *cobra.Command, requireKey bool) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		}
	}

	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(requireKey); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadApp builds the full pipeline for commands that talk to the model.
func loadApp(ctx context.Context, cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd, true)
	if err != nil {
		return nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	logger, err := cli.NewLogger(cfg.Log, debug)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, cfg, logger)
}
