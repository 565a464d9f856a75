package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/config"
	chaterrors "github.com/teilomillet/faqchat/errors"
	"github.com/teilomillet/faqchat/server"
	"go.uber.org/zap"
)

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reply service",
		Long: `Serve POST /chat, /health and /metrics. The configuration file is
watched and most settings apply without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := config.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			chaterrors.SetLogger(logger)

			srv, err := server.NewServer(opts.configPath, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("Starting faqchat",
				zap.String("version", Version),
				zap.Int("port", cfg.Server.Port),
				zap.String("faq", cfg.FAQ.Path))
			if err := srv.Start(ctx); err != nil {
				logger.Error("Server error", zap.Error(err))
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}
}
