package pulse

import (
	"context"
	"fmt"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Checker executes a health check against a target and returns the result.
type Checker interface {
	Check(ctx context.Context, target string) (*CheckResult, error)
}

// ICMPChecker pings targets using ICMP via pro-bing.
type ICMPChecker struct {
	timeout    time.Duration
	count      int
	privileged bool
}

// NewICMPChecker creates a new ICMP checker with the given timeout and ping
// count. Raw sockets are used on Windows, where unprivileged ICMP is unavailable.
func NewICMPChecker(timeout time.Duration, count int) *ICMPChecker {
	return &ICMPChecker{
		timeout:    timeout,
		count:      count,
		privileged: runtime.GOOS == "windows",
	}
}

// WithPrivileged switches to raw ICMP sockets (requires CAP_NET_RAW or root).
func (c *ICMPChecker) WithPrivileged(privileged bool) *ICMPChecker {
	c.privileged = privileged || runtime.GOOS == "windows"
	return c
}

// Check pings the target and returns the result. Ping failures are reported
// in the result; the error is reserved for targets that cannot be pinged at all.
func (c *ICMPChecker) Check(ctx context.Context, target string) (*CheckResult, error) {
	pinger, err := probing.NewPinger(target)
	if err != nil {
		return nil, fmt.Errorf("create pinger: %w", err)
	}

	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(c.privileged)

	// Run returns once Stop is called, so cancellation never leaks the goroutine.
	done := make(chan error, 1)
	go func() {
		done <- pinger.Run()
	}()

	select {
	case runErr := <-done:
		stats := pinger.Statistics()
		result := &CheckResult{
			Target:    target,
			CheckedAt: time.Now().UTC(),
		}

		if runErr != nil {
			result.Success = false
			result.ErrorMessage = runErr.Error()
			result.PacketLoss = 1.0
			return result, nil
		}

		result.LatencyMs = float64(stats.AvgRtt) / float64(time.Millisecond)
		result.PacketLoss = stats.PacketLoss / 100.0 // pro-bing returns 0-100
		result.Success = stats.PacketsRecv > 0

		if !result.Success {
			result.ErrorMessage = "all packets lost"
		}

		return result, nil

	case <-ctx.Done():
		pinger.Stop()
		<-done
		return &CheckResult{
			Target:       target,
			Success:      false,
			PacketLoss:   1.0,
			ErrorMessage: "check cancelled",
			CheckedAt:    time.Now().UTC(),
		}, nil
	}
}
