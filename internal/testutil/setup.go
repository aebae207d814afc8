package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"uploader/internal/telemetry"
)

// NewMockDB creates a pgxmock pool and closes it via t.Cleanup
func NewMockDB(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)

	t.Cleanup(func() {
		mockPool.Close()
	})

	return mockPool
}

// NewTestLogger creates the same trace-aware JSON logger main uses, writing nowhere.
func NewTestLogger() *slog.Logger {
	baseHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(telemetry.NewTraceHandler(baseHandler))
}
