// Package recon discovers hosts on the local network by reading the
// operating system's ARP (neighbour) table and resolving their names.
package recon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// UnknownName is reported for neighbours whose hostname could not be resolved.
const UnknownName = "?"

// ErrDiscovery is the sentinel wrapped by every scan failure.
var ErrDiscovery = errors.New("discovery failed")

// DiscoveryError describes a failed scan step.
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("recon: %s: %v", e.Op, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDiscovery) true for every DiscoveryError.
func (e *DiscoveryError) Is(target error) bool { return target == ErrDiscovery }

// Neighbor is one entry of the ARP table.
type Neighbor struct {
	IP   string `json:"ip"`
	MAC  string `json:"mac"`  // lower-case, colon-separated
	Name string `json:"name"` // hostname or UnknownName
}

// Scanner performs a network discovery pass.
type Scanner interface {
	Scan(ctx context.Context) ([]Neighbor, error)
}

// NormalizeMAC returns mac as lower-case colon-separated octets. It accepts
// colon, dash and dot separators, bare hex, and unpadded octets as printed
// by BSD arp ("0:1a:2b:3:4:5"). Returns "" if mac is not a 48-bit address.
func NormalizeMAC(mac string) string {
	mac = strings.TrimSpace(strings.ToLower(mac))
	if mac == "" {
		return ""
	}

	var octets []string
	switch {
	case strings.ContainsAny(mac, ":-"):
		octets = strings.FieldsFunc(mac, func(r rune) bool { return r == ':' || r == '-' })
	case strings.Contains(mac, "."):
		raw := strings.ReplaceAll(mac, ".", "")
		if len(raw) != 12 {
			return ""
		}
		octets = splitPairs(raw)
	default:
		if len(mac) != 12 {
			return ""
		}
		octets = splitPairs(mac)
	}

	if len(octets) != 6 {
		return ""
	}
	for i, o := range octets {
		if len(o) == 1 {
			o = "0" + o
		}
		if len(o) != 2 || !isHex(o) {
			return ""
		}
		octets[i] = o
	}
	return strings.Join(octets, ":")
}

func splitPairs(s string) []string {
	out := make([]string, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		out = append(out, s[i:i+2])
	}
	return out
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}

// FindByMAC returns the neighbour whose MAC matches mac in any accepted format.
func FindByMAC(neighbors []Neighbor, mac string) (Neighbor, bool) {
	want := NormalizeMAC(mac)
	if want == "" {
		return Neighbor{}, false
	}
	for _, n := range neighbors {
		if NormalizeMAC(n.MAC) == want {
			return n, true
		}
	}
	return Neighbor{}, false
}

// usableMAC reports whether mac identifies a single host: not all zeros
// (incomplete entry) and not broadcast or multicast.
func usableMAC(mac string) bool {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return false
	}
	if hw[0]&0x01 == 0x01 {
		return false
	}
	for _, b := range hw {
		if b != 0 {
			return true
		}
	}
	return false
}
