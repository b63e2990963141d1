package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/agrobot"
	"github.com/aretw0/agrobot/internal/presentation/tui"
)

const chatHelp = `Commands:
  /image <path> [question]  attach a photo to the question
  /reset                    forget the conversation
  /help                     show this help
  exit, quit                leave`

// RunChat reads questions line by line until EOF, exit or cancellation.
func RunChat(ctx context.Context, bot Bot, opts RunOptions) error {
	if !opts.Quiet {
		tui.PrintBanner(opts.Out, agrobot.Version)
		printSystemMessage(opts.Out, "Ask about crops, soil, pests or livestock. /help lists commands.")
	}

	printer, err := newReplyPrinter(opts)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(NewInterruptibleReader(opts.In, ctx.Done()))
	for {
		if !opts.Quiet {
			fmt.Fprint(opts.Out, "> ")
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return handleExecutionError(err)
			}
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			if !opts.Quiet {
				fmt.Fprintln(opts.Out, "Bye! 🌾")
			}
			return nil
		case line == "/help":
			fmt.Fprintln(opts.Out, chatHelp)
			continue
		case line == "/reset":
			if err := bot.Reset(ctx, opts.SessionID); err != nil {
				printSystemMessage(opts.Out, "Reset failed: %v", err)
			} else {
				printSystemMessage(opts.Out, "Conversation cleared.")
			}
			continue
		}

		req, err := parseLine(line)
		if err != nil {
			printSystemMessage(opts.Out, "%v", err)
			continue
		}
		req.SessionID = opts.SessionID

		if err := printer(bot.Respond(ctx, req)); err != nil {
			return err
		}
	}
}

// parseLine turns "/image path question" into a request with the file
// contents attached. Anything else is a plain question.
func parseLine(line string) (agrobot.Request, error) {
	rest, ok := strings.CutPrefix(line, "/image")
	if !ok || (rest != "" && rest[0] != ' ') {
		return agrobot.Request{Text: line}, nil
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return agrobot.Request{}, fmt.Errorf("usage: /image <path> [question]")
	}
	data, err := os.ReadFile(fields[0])
	if err != nil {
		return agrobot.Request{}, fmt.Errorf("cannot read image: %w", err)
	}
	return agrobot.Request{
		Text:  strings.Join(fields[1:], " "),
		Image: data,
	}, nil
}
