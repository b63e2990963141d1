package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/agrobot/internal/config"
	httpAdapter "github.com/aretw0/agrobot/pkg/adapters/http"
	"github.com/aretw0/agrobot/pkg/topic"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration without starting anything",
	Long: `Loads defaults, the config file and the environment, validates the result,
the keyword file and the embedded API description, then prints the effective
configuration with secrets masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if env, _ := cmd.Flags().GetBool("env"); env {
			for _, k := range config.EnvKeys() {
				fmt.Fprintln(out, k)
			}
			return nil
		}

		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		if _, err := topic.LoadKeywords(cfg.Topic.KeywordsFile); err != nil {
			return err
		}
		if _, err := httpAdapter.LoadSpec(cmd.Context(), ""); err != nil {
			return err
		}

		cfg.Gemini.APIKey = mask(cfg.Gemini.APIKey)
		cfg.History.Redis.Password = mask(cfg.History.Redis.Password)
		cfg.History.EncryptionKey = mask(cfg.History.EncryptionKey)
		for i, k := range cfg.History.FallbackKeys {
			cfg.History.FallbackKeys[i] = mask(k)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(data))
		fmt.Fprintln(out, "configuration OK")
		return nil
	},
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().Bool("env", false, "List the recognized environment variables and exit")
}
