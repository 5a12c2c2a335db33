package speedtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/foctal/netprobe/internal/events"
	"github.com/foctal/netprobe/internal/model"
)

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"token":"t-123","expires_in":60}`))
}

func waitForDone(t *testing.T, sink *events.RecordingSink) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if sink.CountTopic(events.TopicSpeedtestDone) >= 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for speedtest:done")
}

func TestEngine_Start_download_fullWhenPayloadFitsBeforeDeadline(t *testing.T) {
	t.Parallel()

	const target = 4096
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, target))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	setting := model.SpeedtestSetting{
		BaseURL:     srv.URL,
		Direction:   model.SpeedtestDownload,
		TargetBytes: target,
		MaxDuration: 5 * time.Second,
	}
	require.NoError(t, eng.Start(sink, "run-1", setting))
	waitForDone(t, sink)

	events := sink.Events()
	var done model.SpeedtestDone
	for _, e := range events {
		if e.Topic == "speedtest:done" {
			done = e.Payload.(model.SpeedtestDone)
		}
	}
	require.Equal(t, model.SpeedtestFull, done.Result)
	require.Equal(t, uint64(target), done.TransferredBytes)
}

func TestEngine_Start_download_timeoutOnSlowServer(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 100; i++ {
			if _, err := w.Write([]byte{0}); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(5 * time.Millisecond)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	setting := model.SpeedtestSetting{
		BaseURL:     srv.URL,
		Direction:   model.SpeedtestDownload,
		TargetBytes: 10 * 1024 * 1024,
		MaxDuration: 50 * time.Millisecond,
	}
	require.NoError(t, eng.Start(sink, "run-1", setting))
	waitForDone(t, sink)

	events := sink.Events()
	var done model.SpeedtestDone
	for _, e := range events {
		if e.Topic == "speedtest:done" {
			done = e.Payload.(model.SpeedtestDone)
		}
	}
	require.Equal(t, model.SpeedtestTimeout, done.Result)
	require.Less(t, done.TransferredBytes, setting.TargetBytes)
}

func TestEngine_Start_tokenFetchFails_emitsErrorDone(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	setting := model.SpeedtestSetting{
		BaseURL:     srv.URL,
		Direction:   model.SpeedtestDownload,
		TargetBytes: 1024,
		MaxDuration: 500 * time.Millisecond,
	}
	require.NoError(t, eng.Start(sink, "run-1", setting))
	waitForDone(t, sink)

	var done model.SpeedtestDone
	for _, e := range sink.Events() {
		if e.Topic == "speedtest:done" {
			done = e.Payload.(model.SpeedtestDone)
		}
	}
	require.Equal(t, model.SpeedtestError, done.Result)
	require.NotEmpty(t, done.Message)
}

func TestEngine_Start_upload_fullWhenServerAccepts(t *testing.T) {
	t.Parallel()

	const target = 3 * chunkSize
	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		n, _ := io.Copy(io.Discard, r.Body)
		if n != target {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	setting := model.SpeedtestSetting{
		BaseURL:     srv.URL,
		Direction:   model.SpeedtestUpload,
		TargetBytes: target,
		MaxDuration: 5 * time.Second,
	}
	require.NoError(t, eng.Start(sink, "run-1", setting))
	waitForDone(t, sink)

	var done model.SpeedtestDone
	for _, e := range sink.Events() {
		if e.Topic == "speedtest:done" {
			done = e.Payload.(model.SpeedtestDone)
		}
	}
	require.Equal(t, model.SpeedtestFull, done.Result, fmt.Sprintf("message: %s", done.Message))
	require.Equal(t, uint64(target), done.TransferredBytes)
}

func TestEngine_Stop_noRunInFlight_isNoop(t *testing.T) {
	t.Parallel()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	eng.Stop(sink)
	require.Equal(t, 0, sink.CountTopic(events.TopicSpeedtestDone))
}

func TestEngine_Start_thenStart_abortsPreviousRun(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", tokenHandler)
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < 1000; i++ {
			if _, err := w.Write([]byte{0}); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			time.Sleep(2 * time.Millisecond)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sink := events.NewRecordingSink()
	eng := New(Config{})
	setting := model.SpeedtestSetting{
		BaseURL:     srv.URL,
		Direction:   model.SpeedtestDownload,
		TargetBytes: 10 * 1024 * 1024,
		MaxDuration: 2 * time.Second,
	}
	require.NoError(t, eng.Start(sink, "run-1", setting))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, eng.Start(sink, "run-2", setting))
	waitForDone(t, sink)

	require.GreaterOrEqual(t, sink.CountTopic(events.TopicSpeedtestDone), 1)

	// run-2 needs its full 2s; the first terminal event is the aborted run-1.
	var first model.SpeedtestDone
	for _, e := range sink.Events() {
		if e.Topic == events.TopicSpeedtestDone {
			first = e.Payload.(model.SpeedtestDone)
			break
		}
	}
	require.Equal(t, model.SpeedtestCanceled, first.Result)
}
