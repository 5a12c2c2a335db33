package applog

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_verboseEnablesDebugLevel(t *testing.T) {
	t.Parallel()

	quiet := New(Options{Writer: devNull(t)})
	require.False(t, quiet.Enabled(context.Background(), slog.LevelDebug))

	verbose := New(Options{Verbose: true, Writer: devNull(t)})
	require.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))
}

func TestFormatRFC3339Millis_hasMillisecondPrecisionAndZSuffix(t *testing.T) {
	t.Parallel()

	ts, err := time.Parse(time.RFC3339Nano, "2026-07-31T10:00:00.123456789Z")
	require.NoError(t, err)
	require.Equal(t, "2026-07-31T10:00:00.123Z", formatRFC3339Millis(ts))
}

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}
