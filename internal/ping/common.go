package ping

import (
	"context"
	"time"

	"github.com/foctal/netprobe/internal/registry"
)

// sleepInterval waits for d between samples, returning early on
// cancellation or context cancellation so the caller's next loop iteration
// observes it and stops.
func sleepInterval(ctx context.Context, tok registry.Token, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-tok.Cancelled():
	case <-ctx.Done():
	}
}
