package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/anisan-cli/aniplay/icon"
	"github.com/anisan-cli/aniplay/provider"
	"github.com/anisan-cli/aniplay/provider/custom"
	"github.com/anisan-cli/aniplay/style"
	"github.com/anisan-cli/aniplay/util"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// CheckDependencies exits when mpv is not in PATH.
func CheckDependencies() {
	if _, err := exec.LookPath("mpv"); err != nil {
		printMissingDependencyError("mpv")
		os.Exit(1)
	}
}

func mpvInstallCommand() string {
	switch runtime.GOOS {
	case "darwin":
		return "brew install mpv"
	case "linux":
		return "sudo apt install mpv"
	case "windows":
		return "scoop install mpv"
	default:
		return ""
	}
}

func printMissingDependencyError(dep string) {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(style.HiRed).
		Padding(1, 2).
		Margin(1, 0)

	title := style.New().Bold(true).Foreground(style.HiRed).Render(fmt.Sprintf("%s Error: Missing Dependency", icon.Get(icon.Failed)))
	body := style.New().Foreground(style.Text).Render(fmt.Sprintf("The required dependency '%s' was not found in your PATH.", dep))

	suggestion := ""
	if installCmd := mpvInstallCommand(); installCmd != "" {
		suggestion = fmt.Sprintf("\n\nTo install it, try running:\n  %s", style.New().Foreground(style.AccentColor).Bold(true).Render(installCmd))
	}

	fmt.Println(box.Render(
		lipgloss.JoinVertical(lipgloss.Left,
			title,
			"\n",
			body,
			suggestion,
		),
	))
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that a player and provider scripts are installed",
	Run: func(cmd *cobra.Command, args []string) {
		ok := func(s string) string { return style.New().Foreground(style.SuccessColor).Render(icon.Get(icon.Succeeded)) + " " + s }
		warn := func(s string) string { return style.New().Foreground(style.WarningColor).Render(icon.Get(icon.Warn)) + " " + s }

		var lines []string

		if path, err := exec.LookPath("mpv"); err == nil {
			lines = append(lines, ok("mpv "+style.Faint(path)))
		} else {
			lines = append(lines, warn("mpv not found, try "+style.Bold(mpvInstallCommand())))
		}

		scripts, err := provider.List()
		handleErr(err)

		media := lo.CountBy(scripts, func(s *custom.Script) bool { return s.Role == custom.RoleMedia })
		danmaku := len(scripts) - media

		if media > 0 {
			lines = append(lines, ok(util.Quantify(media, "media source", "media sources")))
		} else {
			lines = append(lines, warn("no media sources, see `aniplay sources gen`"))
		}

		if danmaku > 0 {
			lines = append(lines, ok(util.Quantify(danmaku, "danmaku provider", "danmaku providers")))
		} else {
			lines = append(lines, warn("no danmaku providers"))
		}

		fmt.Println(lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(style.BorderColor).
			Padding(0, 1).
			Render(lipgloss.JoinVertical(lipgloss.Left, lines...)))
	},
}
