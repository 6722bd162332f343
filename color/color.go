// Package color holds the terminal colors the CLI prints with.
package color

import "github.com/charmbracelet/lipgloss"

// New wraps an ANSI index or hex value.
func New(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

var (
	Red    = New("1")
	Green  = New("2")
	Yellow = New("3")
	Blue   = New("4")
	Purple = New("5")
	Cyan   = New("6")

	HiRed    = New("9")
	HiBlue   = New("12")
	HiPurple = New("13")

	Orange = New("#ffb703")
	Gray   = New("#808080")
)

// ForKind is the color a media or script of the given delivery kind is printed in.
// Unknown kinds are gray.
func ForKind(kind string) lipgloss.Color {
	switch kind {
	case "web":
		return Cyan
	case "bt":
		return Orange
	case "local":
		return Green
	case "danmaku":
		return Purple
	default:
		return Gray
	}
}
