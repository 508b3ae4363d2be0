package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ledger-stats-system/pkg/logger"
)

func init() {
	// Package-level logger must be initialized before singleFlight logs a skip.
	_ = logger.Init("error", "text", "stderr")
}

func TestSingleFlightRuns(t *testing.T) {
	var flag int32
	ran := false

	singleFlight(&flag, "test", func() { ran = true })

	require.True(t, ran)
	require.Equal(t, int32(0), flag)
}

func TestSingleFlightSkipsWhenInFlight(t *testing.T) {
	flag := int32(1)
	ran := false

	singleFlight(&flag, "test", func() { ran = true })

	require.False(t, ran)
	require.Equal(t, int32(1), flag)
}

func TestSingleFlightAllowsSequentialRuns(t *testing.T) {
	var flag int32

	singleFlight(&flag, "test", func() {})
	singleFlight(&flag, "test", func() {})

	require.Equal(t, int32(0), flag)
}
