// Package pulse probes host reachability.
package pulse

import (
	"context"
	"time"
)

// CheckResult is the outcome of one reachability check.
type CheckResult struct {
	Target       string    `json:"target"`
	Success      bool      `json:"success"`
	LatencyMs    float64   `json:"latency_ms"`
	PacketLoss   float64   `json:"packet_loss"` // 0.0-1.0
	ErrorMessage string    `json:"error_message,omitempty"`
	CheckedAt    time.Time `json:"checked_at"`
}

// Reachable runs one check against target and collapses the outcome to a
// boolean: any error, missing result or lost probe counts as unreachable.
func Reachable(ctx context.Context, c Checker, target string) bool {
	result, err := c.Check(ctx, target)
	if err != nil || result == nil {
		return false
	}
	return result.Success
}
