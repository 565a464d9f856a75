package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/tui"
	"go.uber.org/zap"
)

func newChatCmd(opts *options) *cobra.Command {
	var (
		endpoint string
		policy   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the chat widget in the terminal",
		Long: `Open the chat panel. ctrl+t shows or hides it, enter sends the
message and esc quits. Logs are only written when logging.file is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(true)
			if err != nil {
				return err
			}

			widgetCfg := cfg.Widget
			if endpoint != "" {
				widgetCfg.Endpoint = endpoint
			}
			if policy != "" {
				widgetCfg.Policy = policy
			}
			if timeout > 0 {
				widgetCfg.RequestTimeout = timeout
			}

			// The terminal belongs to the widget.
			logger := zap.NewNop()
			if cfg.Logging.File != "" {
				if logger, err = config.NewLogger(cfg.Logging); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return tui.Run(ctx, widgetCfg, logger)
		},
	}

	cmd.Flags().StringVarP(&endpoint, "endpoint", "e", "", "Reply endpoint (overrides widget.endpoint)")
	cmd.Flags().StringVarP(&policy, "policy", "p", "", "Submission policy while a reply is pending: race, ignore or queue")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Timeout of a single exchange")
	return cmd
}
