//go:build !unix

package device

import (
	"errors"
	"os"
)

var errPauseUnsupported = errors.New("pausing an external player is not supported on this platform")

func suspendProcess(p *os.Process) error {
	return errPauseUnsupported
}

func resumeProcess(p *os.Process) error {
	return errPauseUnsupported
}
