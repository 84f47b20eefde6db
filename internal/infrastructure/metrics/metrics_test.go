package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobFinished("completed")
	m.JobFinished("completed")
	m.JobFinished("failed")
	m.DedupeMatched("exact")
	m.SourcesFetched("wikipedia", 3)
	m.SourceFailed("britannica")
	m.SetQueueDepth(7)
	m.JobRetried()
	m.LogsPruned(12)
	m.StageObserved("generating", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dedupeMatches.WithLabelValues("exact")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sourcesFetched.WithLabelValues("wikipedia")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sourceErrors.WithLabelValues("britannica")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRetries))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.prunedLogs))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobFinished("completed")
		m.StageObserved("generating", time.Second)
		m.DedupeMatched("name")
		m.SourcesFetched("wikipedia", 1)
		m.SourceFailed("wikipedia")
		m.SetQueueDepth(1)
		m.JobRetried()
		m.LogsPruned(1)
	})
}
