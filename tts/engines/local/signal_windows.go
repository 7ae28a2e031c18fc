//go:build windows

package local

import (
	"os"

	"github.com/dgnsrekt/readaloud/tts"
)

var errProcessDone = os.ErrProcessDone

func suspendProcess(int) error {
	return tts.ErrNotSupported
}

func resumeProcess(int) error {
	return tts.ErrNotSupported
}
