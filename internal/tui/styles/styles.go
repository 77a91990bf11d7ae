package styles

import (
	catppuccin "github.com/catppuccin/go"
	"github.com/charmbracelet/lipgloss"
)

// Colors follow the catppuccin palette: Latte on light terminals, Mocha on
// dark ones.
var (
	Primary    = adaptive(catppuccin.Flavor.Teal)
	Secondary  = adaptive(catppuccin.Flavor.Lavender)
	Text       = adaptive(catppuccin.Flavor.Text)
	TextMuted  = adaptive(catppuccin.Flavor.Overlay1)
	Error      = adaptive(catppuccin.Flavor.Red)
	Warning    = adaptive(catppuccin.Flavor.Yellow)
	Info       = adaptive(catppuccin.Flavor.Blue)
	Success    = adaptive(catppuccin.Flavor.Green)
	Background = adaptive(catppuccin.Flavor.Base)
	Border     = adaptive(catppuccin.Flavor.Surface1)
)

func adaptive(color func(catppuccin.Flavor) catppuccin.Color) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{
		Light: color(catppuccin.Latte).Hex,
		Dark:  color(catppuccin.Mocha).Hex,
	}
}

func BaseStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(Text)
}

func Bold() lipgloss.Style {
	return BaseStyle().Bold(true)
}

func Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(TextMuted)
}

// Padded returns a style with one cell of horizontal padding.
func Padded() lipgloss.Style {
	return BaseStyle().Padding(0, 1)
}

func Title() lipgloss.Style {
	return Bold().Foreground(Primary)
}

func ErrorText() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(Error)
}

func Box() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Border).
		Padding(0, 1)
}

func Button(active bool) lipgloss.Style {
	s := lipgloss.NewStyle().Padding(0, 2).Bold(true)
	if active {
		return s.Background(Error).Foreground(Background)
	}
	return s.Background(Border).Foreground(Text)
}
