package registry

import (
	"testing"

	"github.com/foctal/netprobe/internal/model"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Start_replacesAndCancelsPrevious(t *testing.T) {
	t.Parallel()

	r := New()
	first := r.Start(model.OpPing)
	require.False(t, first.IsCancelled())

	second := r.Start(model.OpPing)
	require.True(t, first.IsCancelled())
	require.False(t, second.IsCancelled())
}

func TestRegistry_Cancel_reportsPresence(t *testing.T) {
	t.Parallel()

	r := New()
	require.False(t, r.Cancel(model.OpHostscan))

	tok := r.Start(model.OpHostscan)
	require.True(t, r.Cancel(model.OpHostscan))
	require.True(t, tok.IsCancelled())

	require.False(t, r.Cancel(model.OpHostscan))
}

func TestRegistry_Start_independentClasses(t *testing.T) {
	t.Parallel()

	r := New()
	pingTok := r.Start(model.OpPing)
	scanTok := r.Start(model.OpHostscan)

	require.False(t, pingTok.IsCancelled())
	require.False(t, scanTok.IsCancelled())
}

func TestToken_Cancel_isIdempotent(t *testing.T) {
	t.Parallel()

	r := New()
	tok := r.Start(model.OpTraceroute)
	tok.Cancel()
	tok.Cancel()
	require.True(t, tok.IsCancelled())

	select {
	case <-tok.Cancelled():
	default:
		t.Fatal("expected cancelled channel to be closed")
	}
}

func TestToken_clonesShareState(t *testing.T) {
	t.Parallel()

	r := New()
	tok := r.Start(model.OpNeighborscan)
	clone := tok
	clone.Cancel()
	require.True(t, tok.IsCancelled())
}
