//go:build !windows

package system

import (
	"os"
	"syscall"
	"time"
)

// WithNewConsole detaches the command from the terminal's process group so
// that Ctrl+C in the launcher's terminal is not delivered to it.
func WithNewConsole() CmdOption {
	return func(cmd *Cmd) {
		if cmd.SysProcAttr == nil {
			cmd.SysProcAttr = &syscall.SysProcAttr{}
		}
		cmd.SysProcAttr.Setpgid = true
	}
}

// WithGracefulCancel makes context cancellation send SIGINT first, and kill
// the process only if it is still alive after waitDelay.
func WithGracefulCancel(waitDelay time.Duration) CmdOption {
	return func(cmd *Cmd) {
		c := cmd.Cmd
		c.Cancel = func() error {
			return c.Process.Signal(os.Interrupt)
		}
		c.WaitDelay = waitDelay
	}
}
