package latency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

func TestMedian_oddSamples_isMiddleElement(t *testing.T) {
	t.Parallel()
	require.Equal(t, 30.0, median([]float64{10, 20, 30, 40, 50}))
}

func TestMedian_evenSamples_isMeanOfMiddleTwo(t *testing.T) {
	t.Parallel()
	require.Equal(t, 25.0, median([]float64{10, 20, 30, 40}))
}

func TestPopulationStddev_oddSamples(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 14.142, populationStddev([]float64{10, 20, 30, 40, 50}), 0.001)
}

func TestPopulationStddev_evenSamples(t *testing.T) {
	t.Parallel()
	require.InDelta(t, 11.180, populationStddev([]float64{10, 20, 30, 40}), 0.001)
}

func TestEngine_Run_stubServer_recordsEverySampleAndColo(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"colo":"SJC"}`))
	}))
	defer srv.Close()

	eng := New(Config{Clock: clockwork.NewRealClock()})
	sink := events.NewRecordingSink()

	setting := model.LatencySetting{BaseURL: srv.URL, Samples: 5}
	require.NoError(t, setting.Validate())

	done, err := eng.Run(context.Background(), sink, "run-1", setting)
	require.NoError(t, err)
	require.Len(t, done.Samples, 5)
	require.Equal(t, "SJC", done.Colo)
	require.Equal(t, 5, sink.CountTopic(events.TopicLatencyUpdate))
	require.Equal(t, 1, sink.CountTopic(events.TopicLatencyDone))
}

func TestEngine_Run_cancelledContext_stopsEarlyButStillEmitsDone(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	eng := New(Config{Clock: clockwork.NewRealClock()})
	sink := events.NewRecordingSink()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	setting := model.LatencySetting{BaseURL: srv.URL, Samples: 7}
	require.NoError(t, setting.Validate())

	done, err := eng.Run(ctx, sink, "run-1", setting)
	require.NoError(t, err)
	require.Empty(t, done.Samples)
	require.Equal(t, 1, sink.CountTopic(events.TopicLatencyDone))
}
