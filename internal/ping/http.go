package ping

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
	"github.com/foctal/netprobe/internal/registry"
)

// runHTTP issues count lightweight GETs to setting.URL (§4.6); RTT is time
// to receive the response status line.
func runHTTP(ctx context.Context, tok registry.Token, sink events.Sink, runID string, setting model.PingSetting) {
	client := &http.Client{Timeout: setting.Timeout}

	samples := make([]model.PingStat, 0, setting.Count)
	for seq := 0; seq < setting.Count; seq++ {
		if tok.IsCancelled() {
			break
		}
		stat := getOnce(ctx, client, setting, seq)
		samples = append(samples, stat)
		sink.Emit(events.TopicPingUpdate, stat)

		if seq < setting.Count-1 {
			sleepInterval(ctx, tok, setting.Interval)
		}
	}

	sink.Emit(events.TopicPingDone, model.Aggregate(runID, samples))
}

func getOnce(ctx context.Context, client *http.Client, setting model.PingSetting, seq int) model.PingStat {
	reqCtx, cancel := context.WithTimeout(ctx, setting.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, setting.URL, nil)
	if err != nil {
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.PingStat{Seq: seq, Result: model.PingSampleTimeout, Message: "request timed out"}
		}
		return model.PingStat{Seq: seq, Result: model.PingSampleError, Message: err.Error()}
	}
	defer resp.Body.Close()
	rtt := time.Since(start)

	return model.PingStat{Seq: seq, RTT: &rtt, Result: model.PingSampleReply}
}
