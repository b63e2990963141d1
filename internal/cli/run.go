package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/presentation/tui"
)

// Bot is what the terminal front end drives.
type Bot interface {
	Respond(ctx context.Context, req agrobot.Request) string
	Reset(ctx context.Context, sessionID string) error
}

// RunOptions configures ask and chat.
type RunOptions struct {
	In        io.Reader
	Out       io.Writer
	SessionID string
	// Render formats replies with glamour; otherwise steps are numbered plainly.
	Render bool
	Width  int
	Quiet  bool
}

// DefaultRunOptions targets the process terminal.
func DefaultRunOptions() RunOptions {
	return RunOptions{
		In:     os.Stdin,
		Out:    os.Stdout,
		Render: tui.IsTerminal(os.Stdout),
		Width:  tui.Width(os.Stdout),
	}
}

// Ask sends one question, with an optional image file, and prints the reply.
func Ask(ctx context.Context, bot Bot, opts RunOptions, question, imagePath string) error {
	req := agrobot.Request{SessionID: opts.SessionID, Text: question}
	if imagePath != "" {
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		req.Image = data
	}

	printer, err := newReplyPrinter(opts)
	if err != nil {
		return err
	}
	return printer(bot.Respond(ctx, req))
}

// newReplyPrinter picks glamour or plain output.
func newReplyPrinter(opts RunOptions) (func(string) error, error) {
	if !opts.Render {
		return func(reply string) error {
			_, err := fmt.Fprintln(opts.Out, tui.PlainSteps(reply))
			return err
		}, nil
	}

	render, err := tui.NewRenderer(opts.Width)
	if err != nil {
		return nil, err
	}
	return func(reply string) error {
		out, err := render(tui.StepsMarkdown(reply))
		if err != nil {
			// Show the raw text rather than lose the answer.
			out = tui.PlainSteps(reply) + "\n"
		}
		_, err = io.WriteString(opts.Out, strings.TrimLeft(out, "\n"))
		return err
	}, nil
}
