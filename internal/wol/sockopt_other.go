//go:build !linux

package wol

import (
	"fmt"
	"runtime"
	"syscall"
)

// socketControl rejects interface binding, which only Linux supports here.
// The standard library already enables SO_BROADCAST on UDP sockets.
func socketControl(iface string) func(network, address string, c syscall.RawConn) error {
	return func(_, _ string, _ syscall.RawConn) error {
		if iface != "" {
			return fmt.Errorf("binding to interface %q is not supported on %s", iface, runtime.GOOS)
		}
		return nil
	}
}
