package wol

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrShortWrite is returned when the socket accepted fewer bytes than the packet.
var ErrShortWrite = errors.New("short write")

// Sender transmits a magic packet for a MAC address. A nil error means the
// packet left the host; there is no acknowledgement from the target.
type Sender interface {
	Send(ctx context.Context, mac net.HardwareAddr) error
}

// Compile-time interface guard.
var _ Sender = (*UDPSender)(nil)

// UDPSender broadcasts magic packets over UDP, optionally bound to one
// network interface.
type UDPSender struct {
	addr  string
	iface string
}

// NewUDPSender creates a sender for addr (host:port). An empty addr uses
// DefaultBroadcastAddr; an empty iface lets the kernel pick the route.
func NewUDPSender(addr, iface string) *UDPSender {
	if addr == "" {
		addr = DefaultBroadcastAddr
	}
	return &UDPSender{addr: addr, iface: iface}
}

// Addr returns the destination address.
func (s *UDPSender) Addr() string { return s.addr }

// Send writes one magic packet for mac.
func (s *UDPSender) Send(ctx context.Context, mac net.HardwareAddr) error {
	pkt, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	raddr, err := net.ResolveUDPAddr("udp4", s.addr)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", s.addr, err)
	}

	lc := net.ListenConfig{Control: socketControl(s.iface)}
	conn, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return fmt.Errorf("open udp socket: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	n, err := conn.WriteTo(pkt, raddr)
	if err != nil {
		return fmt.Errorf("send to %s: %w", raddr, err)
	}
	if n != len(pkt) {
		return fmt.Errorf("send to %s: %w (%d of %d bytes)", raddr, ErrShortWrite, n, len(pkt))
	}
	return nil
}
