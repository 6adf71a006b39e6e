package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullTrackerIsDefault(t *testing.T) {
	_, ok := Tracker.(*nullTracker)
	require.True(t, ok, "package default must be the no-op tracker until Enable is called")

	assert.NotPanics(t, func() {
		Tracker.TrackDriveStep("acme-setup", "ok")
		Tracker.TrackPollDuration("monitor-challenges", time.Millisecond)
		Tracker.TrackNonceRefill("hit")
	})
}

// NewPrometheusTracker registers its collectors with the default
// registry, so only one test in this package may construct one (a
// second registration of the same metric names would panic).
func TestNewPrometheusTrackerRecordsObservations(t *testing.T) {
	tracker := NewPrometheusTracker()

	assert.NotPanics(t, func() {
		tracker.TrackDriveStep("setup-certificate", "error")
		tracker.TrackPollDuration("setup-certificate", 50*time.Millisecond)
		tracker.TrackNonceRefill("miss")
	})
}
