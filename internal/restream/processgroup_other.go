//go:build !windows
// +build !windows

package restream

import "syscall"

func configureAsProcessGroup() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// stop terminates the transcoding process and everything it spawned.
func (s *session) stop() {
	if s.cmd == nil || s.cmd.Process == nil {
		return
	}

	pgid, err := syscall.Getpgid(s.cmd.Process.Pid)
	if err == nil {
		err := syscall.Kill(-pgid, syscall.SIGTERM)
		s.logger.Err(err).Msg("terminating process group")
	} else {
		s.logger.Err(err).Msg("could not get process group id")
		err := s.cmd.Process.Kill()
		s.logger.Err(err).Msg("killing process")
	}
}
