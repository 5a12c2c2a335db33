package events

import "log/slog"

// ChanSink fans events out over a bounded buffered channel; a full buffer
// drops the event rather than blocking the emitting probe, matching the
// spec's "lossy channel acceptable" emission contract (§2).
type ChanSink struct {
	log *slog.Logger
	ch  chan Envelope
}

type Envelope struct {
	Topic   Topic
	Payload any
}

// NewChanSink creates a sink with the given buffer depth. Call Events to
// drain it and Close when the producer side is done.
func NewChanSink(log *slog.Logger, buffer int) *ChanSink {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChanSink{log: log, ch: make(chan Envelope, buffer)}
}

func (s *ChanSink) Emit(topic Topic, payload any) {
	select {
	case s.ch <- Envelope{Topic: topic, Payload: payload}:
	default:
		if s.log != nil {
			s.log.Warn("events: sink buffer full, dropping event", "topic", topic)
		}
	}
}

// Events returns a receive-only view for a consumer loop.
func (s *ChanSink) Events() <-chan Envelope { return s.ch }

func (s *ChanSink) Close() { close(s.ch) }
