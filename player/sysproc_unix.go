//go:build !windows

package player

import (
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

// detachedProcAttr puts mpv in its own process group so terminal signals do not reach it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	return cmd.Process.Kill()
}

// ipcPath is where mpv listens for name. os.TempDir, not /tmp: macOS keeps it under /var/folders.
func ipcPath(name string) string {
	return filepath.Join(os.TempDir(), name+".sock")
}

func dialIPC(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
