//go:build !windows

package stdio

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isBrokenPipe reports whether err is the peer-closed-the-pipe condition, so
// Run can log it at a quieter level than an unexpected write failure.
func isBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET)
}
