package promspan

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/sirkon/traceinstr/span"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := DefaultConfig()
	cfg.Buckets = []float64{0.01, 0.1, 1}
	c, err := New(reg, cfg)
	require.NoError(t, err)

	now := time.Unix(0, 0)
	c.now = func() time.Time {
		now = now.Add(50 * time.Millisecond)
		return now
	}

	site := &span.Callsite{Name: "fetch", Target: "billing", Level: span.LevelDebug}
	span.WithDefault(c, func() {
		first := span.New(site)
		second := span.New(site)
		require.Equal(t, 2.0, testutil.ToFloat64(c.active.WithLabelValues("billing", "fetch", "debug")))

		first.Enter().Exit()
		first.Close()
		second.Close()
	})

	require.Equal(t, 2.0, testutil.ToFloat64(c.created.WithLabelValues("billing", "fetch", "debug")))
	require.Equal(t, 0.0, testutil.ToFloat64(c.active.WithLabelValues("billing", "fetch", "debug")))

	expected := `
# HELP traceinstr_span_busy_seconds Time spent inside a span over its whole life
# TYPE traceinstr_span_busy_seconds histogram
traceinstr_span_busy_seconds_bucket{level="debug",name="fetch",target="billing",le="0.01"} 1
traceinstr_span_busy_seconds_bucket{level="debug",name="fetch",target="billing",le="0.1"} 2
traceinstr_span_busy_seconds_bucket{level="debug",name="fetch",target="billing",le="1"} 2
traceinstr_span_busy_seconds_bucket{level="debug",name="fetch",target="billing",le="+Inf"} 2
traceinstr_span_busy_seconds_sum{level="debug",name="fetch",target="billing"} 0.05
traceinstr_span_busy_seconds_count{level="debug",name="fetch",target="billing"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "traceinstr_span_busy_seconds"))
}

func TestNewDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, DefaultConfig())
	require.NoError(t, err)

	_, err = New(reg, DefaultConfig())
	require.Error(t, err)
}
