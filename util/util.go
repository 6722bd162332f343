// Package util holds small helpers shared by the CLI and the providers.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/anisan-cli/aniplay/filesystem"
	"golang.org/x/term"
)

var (
	invalidFilename = regexp.MustCompile(`[\\/<>:;"'|?!*{}#%&^+,~\s]`)
	underscores     = regexp.MustCompile(`__+`)
	separators      = regexp.MustCompile(`^[_\-.]+|[_\-.]+$`)
)

// SanitizeFilename makes s safe to use as a file name on every platform.
func SanitizeFilename(s string) string {
	s = invalidFilename.ReplaceAllString(s, "_")
	s = underscores.ReplaceAllString(s, "_")
	return separators.ReplaceAllString(s, "")
}

// Quantify returns "1 file" or "2 files".
func Quantify(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}

func Capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// TerminalWidth is the width of the terminal, or fallback when stdout is not one.
func TerminalWidth(fallback int) int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallback
	}
	return width
}

// FileStem is the base name of path without its extension.
func FileStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// FormatMillis renders a playback position as m:ss or h:mm:ss.
func FormatMillis(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	d := time.Duration(ms) * time.Millisecond
	h, m, s := int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// Delete removes a file or a directory tree.
func Delete(path string) error {
	fs := filesystem.API()
	stat, err := fs.Stat(path)
	if err != nil {
		return err
	}

	if stat.IsDir() {
		return fs.RemoveAll(path)
	}
	return fs.Remove(path)
}
