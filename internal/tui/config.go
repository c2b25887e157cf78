package tui

import (
	"time"

	"github.com/Veraticus/cashbook/internal/model"
	"github.com/Veraticus/cashbook/internal/tui/themes"
)

// Config holds TUI configuration.
type Config struct {
	Theme   themes.Theme
	Sheet   model.SheetKind
	Width   int
	Height  int
	Timeout time.Duration
}

// Option is a functional option for configuring the TUI.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:   themes.Default,
		Sheet:   model.SheetAE,
		Width:   100,
		Height:  24,
		Timeout: 10 * time.Second,
	}
}

// WithTheme sets the visual theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSheet selects the sheet shown first.
func WithSheet(kind model.SheetKind) Option {
	return func(c *Config) {
		c.Sheet = kind
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}
