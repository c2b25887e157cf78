package themes

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the visual style for the TUI.
type Theme struct {
	Title         lipgloss.Style
	Tab           lipgloss.Style
	ActiveTab     lipgloss.Style
	Normal        lipgloss.Style
	Bold          lipgloss.Style
	Selected      lipgloss.Style
	Header        lipgloss.Style
	Computed      lipgloss.Style
	BorderedBox   lipgloss.Style
	StatusInfo    lipgloss.Style
	StatusError   lipgloss.Style
	StatusWarning lipgloss.Style
	StatusSuccess lipgloss.Style
	Primary       lipgloss.Color
	Muted         lipgloss.Color
	Border        lipgloss.Color
	Foreground    lipgloss.Color
	Error         lipgloss.Color
	Warning       lipgloss.Color
	Success       lipgloss.Color
}

// TableStyles returns bubbles table styles matching the theme.
func (t Theme) TableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = t.Header
	styles.Selected = t.Selected
	styles.Cell = t.Normal.Padding(0, 1)
	return styles
}

func build(primary, fg, muted, border, bg, success, warning, errColor, info string) Theme {
	return Theme{
		Primary:    lipgloss.Color(primary),
		Foreground: lipgloss.Color(fg),
		Muted:      lipgloss.Color(muted),
		Border:     lipgloss.Color(border),
		Success:    lipgloss.Color(success),
		Warning:    lipgloss.Color(warning),
		Error:      lipgloss.Color(errColor),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)),
		Tab: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)).
			Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color(primary)).
			Foreground(lipgloss.Color(bg)).
			Padding(0, 1),
		Normal: lipgloss.NewStyle().
			Foreground(lipgloss.Color(fg)),
		Bold: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)),
		Selected: lipgloss.NewStyle().
			Background(lipgloss.Color(primary)).
			Foreground(lipgloss.Color(bg)).
			Bold(true),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(fg)).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color(border)).
			Padding(0, 1),
		Computed: lipgloss.NewStyle().
			Foreground(lipgloss.Color(muted)).
			Italic(true),
		BorderedBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(border)),

		StatusSuccess: lipgloss.NewStyle().
			Foreground(lipgloss.Color(success)).
			Bold(true),
		StatusWarning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(warning)).
			Bold(true),
		StatusError: lipgloss.NewStyle().
			Foreground(lipgloss.Color(errColor)).
			Bold(true),
		StatusInfo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(info)),
	}
}

// Default is the default theme.
var Default = build("#7c3aed", "#fafafa", "#737373", "#404040", "#1a1a1a", "#10b981", "#f59e0b", "#ef4444", "#3b82f6")

// CatppuccinMocha is the Catppuccin Mocha theme.
var CatppuccinMocha = build("#cba6f7", "#cdd6f4", "#6c7086", "#45475a", "#1e1e2e", "#a6e3a1", "#f9e2af", "#f38ba8", "#89dceb")

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	switch name {
	case "catppuccin-mocha":
		return CatppuccinMocha
	default:
		return Default
	}
}
