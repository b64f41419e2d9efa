package cache

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestStats_Snapshot(t *testing.T) {
	var s Stats
	s.hit()
	s.hit()
	s.hit()
	s.miss()
	s.err()

	snap := s.Snapshot()
	assert.Equal(t, uint64(3), snap.Hits)
	assert.Equal(t, uint64(1), snap.Misses)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.InDelta(t, 0.75, snap.HitRate, 1e-9)
}

func TestStats_EmptyHitRate(t *testing.T) {
	var s Stats
	snap := s.Snapshot()
	assert.Equal(t, 0.0, snap.HitRate, "no traffic means rate zero, not NaN")
}

func TestStats_ConcurrentCounting(t *testing.T) {
	var s Stats
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.hit()
				s.miss()
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, uint64(8000), snap.Hits)
	assert.Equal(t, uint64(8000), snap.Misses)
	assert.InDelta(t, 0.5, snap.HitRate, 1e-9)
}

// Счетчики Prometheus должны двигаться вместе со статистикой.
func TestStats_PrometheusOutcomes(t *testing.T) {
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_ops_test_total",
	}, []string{"outcome"})

	s := Stats{ops: cv}
	s.hit()
	s.hit()
	s.miss()
	s.err()

	assert.Equal(t, 2.0, testutil.ToFloat64(cv.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(cv.WithLabelValues("error")))
}
