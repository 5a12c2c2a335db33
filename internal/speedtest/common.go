package speedtest

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

// checkTermination implements §4.8's two shared termination conditions,
// checked after every chunk and on every tick: the clock-based deadline
// first, then the byte-count target.
func checkTermination(total uint64, setting model.SpeedtestSetting, start time.Time, clock clockwork.Clock) (model.SpeedtestResult, bool) {
	if clock.Since(start) >= setting.MaxDuration {
		return model.SpeedtestTimeout, true
	}
	if total >= setting.TargetBytes {
		return model.SpeedtestFull, true
	}
	return "", false
}

// emitUpdate computes instant/avg Mbps (glossary: mbps(b,s) = b*8/s/1e6,
// zero for s<=0) and emits speedtest:update.
func emitUpdate(sink events.Sink, dir model.SpeedtestDirection, elapsed time.Duration, deltaBytes uint64, deltaElapsed time.Duration, total, target uint64) {
	sink.Emit(events.TopicSpeedtestUpdate, model.SpeedtestUpdate{
		Direction:        dir,
		ElapsedMs:        uint64(elapsed.Milliseconds()),
		TransferredBytes: total,
		TargetBytes:      target,
		InstantMbps:      model.Mbps(deltaBytes, deltaElapsed.Seconds()),
		AvgMbps:          model.Mbps(total, elapsed.Seconds()),
	})
}
