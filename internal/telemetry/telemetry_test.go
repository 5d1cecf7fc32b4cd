package telemetry

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func testSource() Source {
	return Source{
		DevicesConfigured: func() int { return 2 },
		SchedulerRunning:  func() bool { return true },
		CacheCounts:       func() map[string]int { return map[string]int{"tmi": 5} },
	}
}

func TestObserveRefreshCounts(t *testing.T) {
	m := New(testSource())

	m.ObserveRefresh("tmi", nil)
	m.ObserveRefresh("tmi", nil)
	m.ObserveRefresh("tmi", errors.New("device unreachable"))

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.Refreshes.WithLabelValues("tmi", "ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.Refreshes.WithLabelValues("tmi", "error")))
}

func TestObserveBackupCounts(t *testing.T) {
	m := New(testSource())

	m.ObserveBackup("mmk", nil)
	m.ObserveBackup("mmk", errors.New("bucket gone"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.Backups.WithLabelValues("mmk", "ok")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.Backups.WithLabelValues("mmk", "error")))
}
