//go:build windows

package player

import (
	"net"
	"os/exec"
	"syscall"

	"gopkg.in/natefinch/npipe.v2"
)

const createNoWindow = 0x08000000

func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: createNoWindow | syscall.CREATE_NEW_PROCESS_GROUP}
}

func killGroup(cmd *exec.Cmd) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	return cmd.Process.Kill()
}

// ipcPath is the named pipe mpv listens on for name.
func ipcPath(name string) string {
	return `\\.\pipe\` + name
}

func dialIPC(path string) (net.Conn, error) {
	return npipe.Dial(path)
}
