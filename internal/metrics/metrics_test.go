package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ObservePass(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObservePass(OutcomeOK, 3, 2, 10*time.Millisecond)
	c.ObservePass(OutcomeStorageErr, 5, 5, time.Millisecond)
	c.ObservePass(OutcomeNoop, 0, 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.passes.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.passes.WithLabelValues(OutcomeStorageErr)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.assigned))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.waiting))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() { c.ObservePass(OutcomeOK, 1, 1, time.Second) })
}
