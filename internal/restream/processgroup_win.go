//go:build windows
// +build windows

package restream

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"
)

func configureAsProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func taskkillWithChildren(cmd *exec.Cmd) error {
	// Taskkill command documentation: https://learn.microsoft.com/en-us/windows-server/administration/windows-commands/taskkill
	kill := exec.Command("TASKKILL", "/T", "/PID", strconv.Itoa(cmd.Process.Pid))
	kill.Stderr = os.Stderr
	kill.Stdout = os.Stdout
	return kill.Run()
}

// stop terminates the transcoding process and everything it spawned.
func (s *session) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	if err := taskkillWithChildren(s.cmd); err != nil {
		s.logger.Err(err).Msg("failed to kill process group")
	}
}
