package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wabot/pkg/config"
	"wabot/pkg/gateway"
	"wabot/pkg/logger"
	"wabot/pkg/workspace"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the browser session, reply loop and HTTP surface",
	Long:  "Starts the browser on the messaging web client, polls unread conversations, replies to new messages, and serves the QR code, screenshots, health and readiness over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		stateDir, err := workspace.ApplyStatePaths(cfg)
		if err != nil {
			return fmt.Errorf("prepare state directory: %w", err)
		}

		appLogger, closer, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		defer closer.Close()
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.run")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.Build(runCtx, cfg, appLogger)
		if err != nil {
			log.Error("Failed to initialize service", "error", err)
			return err
		}

		log.Info("Service starting",
			"url", cfg.Browser.URL,
			"state_dir", stateDir.Root(),
			"address", svc.Address(),
			"reply_provider", replyProviderName(cfg),
			"telegram", cfg.Notify.Telegram.Enabled,
			"persistent_seen", cfg.Dedupe.StorePath != "",
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Error("Service failed", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func replyProviderName(cfg *config.Config) string {
	if cfg.Reply.Provider == "" {
		return "rules"
	}
	return cfg.Reply.Provider
}
