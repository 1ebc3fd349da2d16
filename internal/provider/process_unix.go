//go:build unix

package provider

import (
	"os/exec"
	"syscall"
)

// configureProcess runs the child in its own process group so cancellation
// also reaches anything it spawned, such as the command under sh -c.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
