// Package wol builds and transmits Wake-on-LAN magic packets.
package wol

import (
	"bytes"
	"errors"
	"fmt"
	"net"
)

const (
	// PacketSize is the length of a magic packet without SecureOn password.
	PacketSize = 6 + 16*6

	// DefaultBroadcastAddr is the limited broadcast address on the discard port.
	DefaultBroadcastAddr = "255.255.255.255:9"
)

// ErrInvalidMAC is returned for addresses that are not 48-bit MACs.
var ErrInvalidMAC = errors.New("invalid MAC address")

// ParseMAC parses a 48-bit MAC address in any format net.ParseMAC accepts.
func ParseMAC(s string) (net.HardwareAddr, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, s)
	}
	if len(hw) != 6 {
		return nil, fmt.Errorf("%w: %q is not 48-bit", ErrInvalidMAC, s)
	}
	return hw, nil
}

// MagicPacket returns the 102-byte payload for mac: six 0xFF bytes followed
// by sixteen repetitions of the address.
func MagicPacket(mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidMAC, len(mac))
	}

	var buf bytes.Buffer
	buf.Grow(PacketSize)
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for range 16 {
		buf.Write(mac)
	}
	return buf.Bytes(), nil
}
