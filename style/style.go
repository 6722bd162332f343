// Package style composes lipgloss renderers for the CLI output.
package style

import (
	"fmt"

	"github.com/anisan-cli/aniplay/color"
	"github.com/charmbracelet/lipgloss"
)

func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Fg renders with the foreground c.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return New().Foreground(c).Render(s) }
}

var (
	Faint = func(s string) string { return New().Faint(true).Render(s) }
	Bold  = func(s string) string { return New().Bold(true).Render(s) }
)

// Kind renders s in the color of a delivery kind.
func Kind(kind, s string) string {
	return Fg(color.ForKind(kind))(s)
}

// Position formats a playback position and duration, both in milliseconds, as
// "m:ss / m:ss". An unknown duration prints as "--:--".
func Position(position, duration int64) string {
	clock := func(ms int64) string {
		s := ms / 1000
		if s >= 3600 {
			return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
		}
		return fmt.Sprintf("%d:%02d", s/60, s%60)
	}

	total := "--:--"
	if duration > 0 {
		total = clock(duration)
	}
	return clock(position) + " / " + Faint(total)
}
