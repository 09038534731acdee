//go:build windows

package mdns

import (
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

// newReusePortControl sets SO_REUSEADDR. Windows has no SO_REUSEPORT
// equivalent reachable this way; per spec.md §4.2 that's non-fatal, so
// this simply doesn't attempt it. log is accepted for signature parity
// with the unix build and is unused here.
func newReusePortControl(_ *zap.Logger) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
