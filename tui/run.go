package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/teilomillet/faqchat/config"
	"github.com/teilomillet/faqchat/widget"
	"go.uber.org/zap"
)

// Run opens the chat panel in the terminal and blocks until the user quits
// or ctx is canceled. The logger must not write to the terminal.
func Run(ctx context.Context, cfg config.WidgetConfig, logger *zap.Logger) error {
	policy, err := widget.ParsePolicy(cfg.Policy)
	if err != nil {
		return err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	shell := NewShell()
	ctrl := widget.NewController(shell, widget.NewClient(cfg.Endpoint), widget.Options{
		Policy:  policy,
		Timeout: cfg.RequestTimeout,
		Logger:  logger.Named("widget"),
	})

	model := NewModel(ctx, ctrl, shell, Options{
		Endpoint: cfg.Endpoint,
		Policy:   policy,
		Open:     true,
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	shell.Attach(p.Send)

	logger.Info("Chat widget started",
		zap.String("endpoint", cfg.Endpoint),
		zap.String("policy", policy.String()))

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("chat widget: %w", err)
	}
	return nil
}
