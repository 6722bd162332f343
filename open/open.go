// Package open launches a path or URL with the system's default handler.
package open

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

// Start opens target without waiting for the handler to exit.
func Start(target string) error {
	cmd, err := command(runtime.GOOS, target)
	if err != nil {
		return err
	}
	return cmd.Start()
}

func command(goos, target string) (*exec.Cmd, error) {
	switch goos {
	case "windows":
		rundll := filepath.Join(os.Getenv("SYSTEMROOT"), "System32", "rundll32.exe")
		return exec.Command(rundll, "url.dll,FileProtocolHandler", target), nil
	case "darwin":
		return exec.Command("open", target), nil
	case "linux", "freebsd", "openbsd":
		return exec.Command("xdg-open", target), nil
	case "android":
		return exec.Command("termux-open", target), nil
	default:
		return nil, fmt.Errorf("unsupported OS: %s", goos)
	}
}
