//go:build !windows

package mdns

import (
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// newReusePortControl builds a net.ListenConfig.Control callback that sets
// SO_REUSEADDR (required so a previous responder's TIME_WAIT socket never
// blocks a restart) and attempts SO_REUSEPORT (needed to coexist with
// another mDNS responder, e.g. Avahi, already bound to :5353 on the same
// host). Per spec.md §4.2, SO_REUSEPORT is best-effort: any failure
// setting it — ENOPROTOOPT on older kernels, EACCES/EINVAL in some
// sandboxes — is logged and otherwise ignored, mirroring the original's
// reuse_port handling (_examples/original_source/src/address_family.rs),
// which only warns regardless of the underlying errno.
func newReusePortControl(log *zap.Logger) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
				return
			}
			if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
				log.Warn("mdns: SO_REUSEPORT unavailable, continuing without port sharing", zap.Error(err))
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}
