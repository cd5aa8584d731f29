package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/softrng/bus/sim"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	b := sim.New()
	c := sim.NewCandidate("0000:00:04.0", DefaultID)
	b.Plug(c, sim.NewRNG(1))
	d := New(b, Options{Metrics: m})
	p := NewDispatcher(d)

	// Not ready before attach.
	_, err := p.Rand32()
	require.Error(t, err)

	b.InjectFault(sim.OpMap, errors.New("boom"))
	_, err = d.Attach(context.Background(), &c)
	require.Error(t, err)
	b.InjectFault(sim.OpMap, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attachFailures.WithLabelValues("map")))

	_, err = d.Attach(context.Background(), &c)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attached))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attaches))

	require.NoError(t, p.Seed(7))
	for range 3 {
		_, err = p.Rand64()
		require.NoError(t, err)
	}
	require.Error(t, p.Dispatch(Request{Cmd: 0xffff}))
	require.Error(t, p.Dispatch(Request{Cmd: CmdRand32}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("rand32", "not-ready")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("seed", "ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.requests.WithLabelValues("rand64", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("unknown", "unsupported")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("rand32", "fault")))

	require.NoError(t, d.Detach())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.attached))

	n, err := testutil.GatherAndCount(reg, "rng_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestMetricsNil(t *testing.T) {
	var m *Metrics
	m.observeRequest(KindSeed, nil)
	m.setAttached(true)
	m.attachFailed(StepEnable)
}
