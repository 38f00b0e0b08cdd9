package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick(time.Millisecond, time.Millisecond)
		m.Emitted("rel_x")
		m.EmitFailed("rel_x")
		m.Boost()
		m.SessionStarted()
		m.SessionEnded(time.Second)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("/nonexistent/metrics.prom"))
}

func TestObserveTickCountsOverruns(t *testing.T) {
	m := New()
	period := 16 * time.Millisecond

	m.ObserveTick(2*time.Millisecond, period)
	m.ObserveTick(period, period)
	m.ObserveTick(20*time.Millisecond, period)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.ticks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.overruns))
}

func TestEventCountersByKind(t *testing.T) {
	m := New()
	m.Emitted("rel_x")
	m.Emitted("rel_x")
	m.Emitted("frame")
	m.EmitFailed("wheel")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("rel_x")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("frame")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emitErrors.WithLabelValues("wheel")))
}

func TestSessionGauge(t *testing.T) {
	m := New()
	m.SessionStarted()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions))

	m.SessionEnded(3 * time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.active))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.Boost()

	path := filepath.Join(t.TempDir(), "xkeycursor.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "xkeycursor_boosts_total 1")
}
