package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCommand(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCommand("vote", OutcomeOK, 10*time.Millisecond)
	m.ObserveCommand("vote", OutcomeOK, 10*time.Millisecond)
	m.ObserveCommand("vote", OutcomeNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.commands.WithLabelValues("vote", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("vote", OutcomeNotFound)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestInflight(t *testing.T) {
	m := New(prometheus.NewRegistry())
	end := m.Begin()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.inflight))
	end()
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCommand("view", OutcomeOK, time.Second)
	m.ReplyFailed("discord")
	m.Begin()()
}
