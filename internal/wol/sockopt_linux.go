//go:build linux

package wol

import (
	"fmt"
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl enables broadcast and, when iface is set, pins the socket to
// that interface with SO_BINDTODEVICE (requires CAP_NET_RAW).
func socketControl(iface string) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		var opErr error
		err := c.Control(func(fd uintptr) {
			if opErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1); opErr != nil {
				opErr = fmt.Errorf("set SO_BROADCAST: %w", opErr)
				return
			}
			if iface == "" {
				return
			}
			if opErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface); opErr != nil {
				opErr = fmt.Errorf("bind to interface %q: %w", iface, opErr)
			}
		})
		if err != nil {
			return err
		}
		return opErr
	}
}
