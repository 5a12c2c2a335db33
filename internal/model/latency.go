package model

import (
	"fmt"
	"time"
)

// DefaultLatencySamples and LatencySampleInterval match §4.9.
const (
	DefaultLatencySamples = 7
	LatencySampleInterval = 120 * time.Millisecond
)

type LatencySetting struct {
	BaseURL string
	Samples int
}

func (s *LatencySetting) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("%w: base_url must be set", ErrConfig)
	}
	if s.Samples <= 0 {
		s.Samples = DefaultLatencySamples
	}
	return nil
}

type LatencyUpdate struct {
	Sample int
	Total  int
	RTTMs  float64
}

type LatencyDone struct {
	LatencyMs float64
	JitterMs  float64
	Samples   []float64
	Colo      string
}
