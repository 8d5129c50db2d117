package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"wabot/pkg/config"
	"wabot/pkg/gateway"
	"wabot/pkg/reply"
	"wabot/pkg/ui"

	"github.com/spf13/cobra"
)

var replyText string

var replyCmd = &cobra.Command{
	Use:   "reply [text]",
	Short: "Show the reply the bot would send for a message",
	Long:  "Classifies text with the configured rules (and model, when enabled) without touching the browser. With no text, reads messages from stdin until exit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		responder, err := gateway.NewResponder(cfg, nil)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		if text := resolveText(args); text != "" {
			return printReply(ctx, cmd.OutOrStdout(), responder, text)
		}
		return runInteractive(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), responder)
	},
}

func init() {
	rootCmd.AddCommand(replyCmd)
	replyCmd.Flags().StringVarP(&replyText, "text", "t", "", "message text to classify")
}

func resolveText(args []string) string {
	if value := strings.TrimSpace(replyText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func printReply(ctx context.Context, out io.Writer, responder reply.Responder, text string) error {
	answer, err := responder.Respond(ctx, text)
	if err != nil {
		return fmt.Errorf("classify message: %w", err)
	}

	_, err = fmt.Fprintln(out, ui.RenderReply(answer.Category, answer.Text))
	return err
}

func runInteractive(ctx context.Context, in io.Reader, out io.Writer, responder reply.Responder) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, "› ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if isExitCommand(text) {
			return nil
		}

		if err := printReply(ctx, out, responder, text); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
	}
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
