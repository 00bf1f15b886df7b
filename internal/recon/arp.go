package recon

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	procNetARP           = "/proc/net/arp"
	defaultLookupTimeout = 500 * time.Millisecond
	maxParallelLookups   = 8
)

// Resolver performs reverse DNS lookups. *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

// Compile-time interface guard.
var _ Scanner = (*ARPScanner)(nil)

// ARPScanner reads the local ARP table. On Linux it reads /proc/net/arp;
// elsewhere it runs `arp -a`. Entries without a hostname are resolved
// through reverse DNS.
type ARPScanner struct {
	logger        *zap.Logger
	platform      string
	resolver      Resolver
	lookupTimeout time.Duration
	procPath      string
	runARP        func(ctx context.Context) ([]byte, error)

	// readTable returns the raw table and the platform whose layout it uses.
	readTable func(ctx context.Context) (string, string, error)
}

// NewARPScanner creates a scanner for the running platform.
func NewARPScanner(logger *zap.Logger, resolver Resolver) *ARPScanner {
	s := &ARPScanner{
		logger:        logger,
		platform:      runtime.GOOS,
		resolver:      resolver,
		lookupTimeout: defaultLookupTimeout,
		procPath:      procNetARP,
		runARP:        runARPCommand,
	}
	s.readTable = s.readSystemTable
	return s
}

// Scan returns the current ARP neighbours with hostnames filled in.
func (s *ARPScanner) Scan(ctx context.Context) ([]Neighbor, error) {
	raw, layout, err := s.readTable(ctx)
	if err != nil {
		return nil, &DiscoveryError{Op: "read arp table", Err: err}
	}

	neighbors := ParseARPOutput(raw, layout)
	s.resolveNames(ctx, neighbors)

	s.logger.Debug("arp scan complete", zap.Int("neighbors", len(neighbors)))
	return neighbors, nil
}

func (s *ARPScanner) readSystemTable(ctx context.Context) (string, string, error) {
	layout := s.platform
	if s.platform == "linux" {
		data, err := os.ReadFile(s.procPath)
		if err == nil {
			return string(data), layout, nil
		}
		s.logger.Debug("falling back to arp command", zap.Error(err))
		// Linux `arp -a` prints the BSD layout.
		layout = "darwin"
	}

	out, err := s.runARP(ctx)
	if err != nil {
		return "", "", err
	}
	return string(out), layout, nil
}

func runARPCommand(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "arp", "-a").Output()
}

// resolveNames fills Name for entries the table did not name.
func (s *ARPScanner) resolveNames(ctx context.Context, neighbors []Neighbor) {
	if s.resolver == nil {
		for i := range neighbors {
			if neighbors[i].Name == "" {
				neighbors[i].Name = UnknownName
			}
		}
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLookups)
	for i := range neighbors {
		if neighbors[i].Name != "" && neighbors[i].Name != UnknownName {
			continue
		}
		n := &neighbors[i]
		g.Go(func() error {
			n.Name = s.lookupName(gctx, n.IP)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ARPScanner) lookupName(ctx context.Context, ip string) string {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	names, err := s.resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return UnknownName
	}
	return strings.TrimSuffix(names[0], ".")
}

// ParseARPOutput parses ARP table text for the given platform ("linux" for
// /proc/net/arp, "windows" for `arp -a`, "darwin"/BSD for `arp -a`).
// Incomplete, broadcast and multicast entries are skipped.
func ParseARPOutput(output, platform string) []Neighbor {
	switch platform {
	case "linux":
		return parseLinuxARP(output)
	case "windows":
		return parseWindowsARP(output)
	case "darwin", "freebsd", "openbsd", "netbsd":
		return parseBSDARP(output)
	default:
		return nil
	}
}

// parseLinuxARP reads the /proc/net/arp layout:
// IP address  HW type  Flags  HW address  Mask  Device
func parseLinuxARP(output string) []Neighbor {
	var out []Neighbor
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[0] == "IP" {
			continue
		}
		if fields[2] == "0x0" {
			continue
		}
		mac := NormalizeMAC(fields[3])
		if mac == "" || !usableMAC(mac) {
			continue
		}
		out = append(out, Neighbor{IP: fields[0], MAC: mac})
	}
	return out
}

// parseWindowsARP reads `arp -a` on Windows:
//
//	Internet Address      Physical Address      Type
//	192.168.1.1           aa-bb-cc-dd-ee-ff     dynamic
func parseWindowsARP(output string) []Neighbor {
	var out []Neighbor
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 || strings.HasPrefix(fields[0], "Interface") {
			continue
		}
		mac := NormalizeMAC(fields[1])
		if mac == "" || !usableMAC(mac) {
			continue
		}
		out = append(out, Neighbor{IP: fields[0], MAC: mac})
	}
	return out
}

// parseBSDARP reads `arp -a` on macOS, the BSDs and net-tools Linux:
//
//	host.lan (192.168.1.1) at aa:bb:cc:dd:ee:ff on en0 ifscope [ethernet]
func parseBSDARP(output string) []Neighbor {
	var out []Neighbor
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[2] != "at" {
			continue
		}
		ip := strings.Trim(fields[1], "()")
		mac := NormalizeMAC(fields[3])
		if ip == "" || mac == "" || !usableMAC(mac) {
			continue
		}
		out = append(out, Neighbor{IP: ip, MAC: mac, Name: fields[0]})
	}
	return out
}
