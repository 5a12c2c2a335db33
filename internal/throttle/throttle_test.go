package throttle

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestThrottle_terminalAlwaysEmits(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	th := New(3, clock)

	done, emit := th.OnAdvance()
	require.Equal(t, 1, done)
	require.True(t, emit) // first advance always emits

	done, emit = th.OnAdvance()
	require.Equal(t, 2, done)
	require.False(t, emit) // no time elapsed, not terminal

	done, emit = th.OnAdvance()
	require.Equal(t, 3, done)
	require.True(t, emit) // terminal advance always emits
}

func TestThrottle_minIntervalGatesEmission(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	th := New(10, clock)

	_, emit := th.OnAdvance()
	require.True(t, emit)

	_, emit = th.OnAdvance()
	require.False(t, emit)

	clock.Advance(defaultMinInterval)
	_, emit = th.OnAdvance()
	require.True(t, emit)
}

func TestThrottle_monotonicDoneCount(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	th := New(5, clock)
	var last int
	for i := 0; i < 5; i++ {
		done, _ := th.OnAdvance()
		require.GreaterOrEqual(t, done, last)
		last = done
		clock.Advance(time.Millisecond)
	}
	require.Equal(t, 5, last)
}
