package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/teilomillet/faqchat/faq"
	"github.com/teilomillet/faqchat/server/provider"
	"go.uber.org/zap"
)

func newValidateCmd(opts *options) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and the FAQ file",
		Long: `Load and validate the configuration, then the FAQ file it points at.
With --probe, send a one-line request to every configured provider.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(false)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid")

			store, err := faq.Load(cfg.FAQ.Path, faq.Options{})
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "FAQ file: %v\n", err)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "FAQ file: %s (%d entries)\n", cfg.FAQ.Path, store.Len())
			}

			if !probe {
				return nil
			}
			if cfg.Upstream.Disabled {
				fmt.Fprintln(cmd.OutOrStdout(), "Upstream is disabled, nothing to probe")
				return nil
			}

			manager, err := provider.NewManager(cfg, zap.NewNop(), prometheus.NewRegistry())
			if err != nil {
				return err
			}
			return probeProviders(cmd, manager, cfg.Upstream.ProviderPreference)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Send a request to every provider")
	return cmd
}

// prober is the part of provider.Manager used by probeProviders.
type prober interface {
	CheckProviderHealth(ctx context.Context, name string) (provider.HealthStatus, error)
}

// probeProviders checks every provider in order and fails when none
// answers.
func probeProviders(cmd *cobra.Command, p prober, names []string) error {
	healthy := 0
	for _, name := range names {
		status, err := p.CheckProviderHealth(cmd.Context(), name)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-12s failed: %v\n", name, err)
			continue
		}
		healthy++
		fmt.Fprintf(cmd.OutOrStdout(), "  %-12s ok (%s)\n", name, status.Latency.Round(time.Millisecond))
	}
	if healthy == 0 {
		return fmt.Errorf("no provider answered")
	}
	return nil
}
