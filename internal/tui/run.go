package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the editor on the terminal and blocks until the user quits or
// ctx is cancelled.
func Run(ctx context.Context, book Ledger, opts ...Option) error {
	if book == nil {
		return fmt.Errorf("ledger is required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	program := tea.NewProgram(
		newModel(book, cfg),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
