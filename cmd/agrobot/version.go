package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/agrobot"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of agrobot",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agrobot version %s\n", strings.TrimSpace(agrobot.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
