package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/agrobot/internal/cli"
	"github.com/spf13/cobra"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question from the terminal",
	Example: `  agrobot ask "How do I improve clay soil?"
  agrobot ask --image leaf.jpg "What is wrong with this plant?"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		image, _ := cmd.Flags().GetString("image")
		opts := runOptions(cmd)
		return cli.Ask(ctx, app.Bot, opts, strings.Join(args, " "), image)
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := loadApp(ctx, cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := runOptions(cmd)
		err = cli.RunChat(ctx, app.Bot, opts)
		if sig := ctx.Signal(); sig != nil && !opts.Quiet {
			fmt.Fprintf(opts.Out, "\n>>> Interrupted (%v).\n", sig)
		}
		return err
	},
}

func runOptions(cmd *cobra.Command) cli.RunOptions {
	opts := cli.DefaultRunOptions()
	opts.SessionID, _ = cmd.Flags().GetString("session")
	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		opts.Render = false
	}
	opts.Quiet, _ = cmd.Flags().GetBool("quiet")
	return opts
}

func init() {
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)

	askCmd.Flags().StringP("image", "i", "", "Photo to attach (JPEG, PNG, GIF, WebP, BMP or TIFF)")
	for _, c := range []*cobra.Command{askCmd, chatCmd} {
		c.Flags().String("session", "cli", "Conversation id (used when history.scope is session)")
		c.Flags().Bool("plain", false, "Disable markdown rendering")
	}
	chatCmd.Flags().BoolP("quiet", "q", false, "No banner or prompt")
}
