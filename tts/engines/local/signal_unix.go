//go:build !windows

package local

import (
	"os"

	"golang.org/x/sys/unix"
)

var errProcessDone = os.ErrProcessDone

func suspendProcess(pid int) error {
	return unix.Kill(pid, unix.SIGSTOP)
}

func resumeProcess(pid int) error {
	return unix.Kill(pid, unix.SIGCONT)
}
