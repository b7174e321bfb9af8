//go:build windows

package system

import (
	"syscall"
	"time"

	"golang.org/x/sys/windows"
)

// WithNewConsole runs the command in its own console window, the same way
// `start /wait` does. Standard streams are left unset so that the new console
// is used.
func WithNewConsole() CmdOption {
	return func(cmd *Cmd) {
		if cmd.SysProcAttr == nil {
			cmd.SysProcAttr = &syscall.SysProcAttr{}
		}
		cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_CONSOLE
		cmd.Stdin = nil
		cmd.Stdout = nil
		cmd.Stderr = nil
	}
}

// WithGracefulCancel only bounds the wait after the process is killed;
// Windows has no interrupt signal to deliver to another console.
func WithGracefulCancel(waitDelay time.Duration) CmdOption {
	return func(cmd *Cmd) {
		cmd.WaitDelay = waitDelay
	}
}
