package testutil

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/HerbHall/wolgate/internal/pulse"
	"github.com/HerbHall/wolgate/internal/recon"
	"github.com/HerbHall/wolgate/internal/wol"
)

// NewNeighbor returns an ARP neighbour with sensible defaults, suitable for
// test fixtures.
func NewNeighbor(opts ...func(*recon.Neighbor)) recon.Neighbor {
	n := recon.Neighbor{
		IP:   "192.168.1.100",
		MAC:  "00:11:22:33:44:55",
		Name: recon.UnknownName,
	}
	for _, opt := range opts {
		opt(&n)
	}
	return n
}

// WithNeighborIP sets the neighbour IP address.
func WithNeighborIP(ip string) func(*recon.Neighbor) {
	return func(n *recon.Neighbor) { n.IP = ip }
}

// WithNeighborMAC sets the neighbour MAC address, normalized.
func WithNeighborMAC(mac string) func(*recon.Neighbor) {
	return func(n *recon.Neighbor) { n.MAC = recon.NormalizeMAC(mac) }
}

// WithNeighborName sets the neighbour hostname.
func WithNeighborName(name string) func(*recon.Neighbor) {
	return func(n *recon.Neighbor) { n.Name = name }
}

// Scanner is a recon.Scanner returning scripted results. The last result
// repeats once the script is exhausted.
type Scanner struct {
	mu      sync.Mutex
	results [][]recon.Neighbor
	errs    []error
	calls   int
}

var _ recon.Scanner = (*Scanner)(nil)

// NewScanner returns a Scanner that always reports neighbors.
func NewScanner(neighbors ...recon.Neighbor) *Scanner {
	s := &Scanner{}
	s.Then(neighbors...)
	return s
}

// NewFailingScanner returns a Scanner whose every scan fails with err.
func NewFailingScanner(err error) *Scanner {
	s := &Scanner{}
	s.ThenFail(err)
	return s
}

// Then appends a scan result to the script.
func (s *Scanner) Then(neighbors ...recon.Neighbor) *Scanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, neighbors)
	s.errs = append(s.errs, nil)
	return s
}

// ThenFail appends a failing scan to the script.
func (s *Scanner) ThenFail(err error) *Scanner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, nil)
	s.errs = append(s.errs, err)
	return s
}

// Scan implements recon.Scanner.
func (s *Scanner) Scan(ctx context.Context) ([]recon.Neighbor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	i := min(s.calls, len(s.results)-1)
	s.calls++
	if i < 0 {
		return nil, nil
	}
	if s.errs[i] != nil {
		return nil, &recon.DiscoveryError{Op: "scan", Err: s.errs[i]}
	}
	out := make([]recon.Neighbor, len(s.results[i]))
	copy(out, s.results[i])
	return out, nil
}

// Calls returns the number of scans performed.
func (s *Scanner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ErrProbeTimeout is returned by Checker for targets marked as timing out.
var ErrProbeTimeout = errors.New("probe timed out")

// Checker is a pulse.Checker with per-target scripted reachability.
// Unknown targets time out.
type Checker struct {
	mu    sync.Mutex
	up    map[string]bool
	calls map[string]int
	block chan struct{}
}

var _ pulse.Checker = (*Checker)(nil)

// NewChecker returns a Checker where every target times out.
func NewChecker() *Checker {
	return &Checker{up: make(map[string]bool), calls: make(map[string]int)}
}

// Set marks target as reachable or not. Unreachable targets report a failed
// check; unset targets return ErrProbeTimeout.
func (c *Checker) Set(target string, reachable bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up[target] = reachable
}

// Unset makes target time out again.
func (c *Checker) Unset(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.up, target)
}

// Block makes every check wait until the returned func is called or the
// check's context ends.
func (c *Checker) Block() (release func()) {
	ch := make(chan struct{})
	c.mu.Lock()
	c.block = ch
	c.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Check implements pulse.Checker.
func (c *Checker) Check(ctx context.Context, target string) (*pulse.CheckResult, error) {
	c.mu.Lock()
	c.calls[target]++
	up, known := c.up[target]
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !known {
		return nil, ErrProbeTimeout
	}
	result := &pulse.CheckResult{Target: target, Success: up}
	if !up {
		result.PacketLoss = 1
	}
	return result, nil
}

// Calls returns how often target was checked.
func (c *Checker) Calls(target string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[target]
}

// Sender is a wol.Sender recording every transmission.
type Sender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

var _ wol.Sender = (*Sender)(nil)

// NewSender returns a Sender that succeeds.
func NewSender() *Sender {
	return &Sender{}
}

// Fail makes subsequent sends return err; nil restores success. Failed
// sends are still recorded as attempts.
func (s *Sender) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Send records mac and returns the configured error.
func (s *Sender) Send(ctx context.Context, mac net.HardwareAddr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, mac.String())
	if s.err != nil {
		return s.err
	}
	return ctx.Err()
}

// Sent returns the MACs of every attempted transmission.
func (s *Sender) Sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	copy(out, s.sent)
	return out
}
