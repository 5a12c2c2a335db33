// Package tuner derives the parallel-fanout bound for the host-scan engine
// from host capability (§4.4).
package tuner

import "runtime"

const (
	minConcurrency = 16
	maxConcurrency = 512

	// perCPUFanout is the scaling factor applied to logical CPU count before
	// clamping; chosen so an 8-core host lands mid-range (256) without a
	// config knob, matching "platform default socket limits" headroom.
	perCPUFanout = 32
)

// HostsConcurrency returns a deterministic-within-a-run fanout bound clamped
// to [16, 512], scaled by logical CPU count (§4.4).
func HostsConcurrency() int {
	n := runtime.NumCPU() * perCPUFanout
	if n < minConcurrency {
		return minConcurrency
	}
	if n > maxConcurrency {
		return maxConcurrency
	}
	return n
}
