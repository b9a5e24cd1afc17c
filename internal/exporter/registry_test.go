package exporter

import (
	"fmt"
	"strings"
	"testing"

	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"bytes-in":          "bytes_in",
		"curr-conn":         "curr_conn",
		"total_l4_conn":     "total_l4_conn",
		"fwd-pkt-drop-rate": "fwd_pkt_drop_rate",
		"":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeName(in), "NormalizeName(%q)", in)
	}
}

func TestDisplayCategory(t *testing.T) {
	tests := map[string]string{
		"_vport1": "vport1",
		"vport1":  "vport1",
		"__x":     "_x",
		"_":       "",
	}
	for in, want := range tests {
		assert.Equal(t, want, DisplayCategory(in), "DisplayCategory(%q)", in)
	}
}

func TestMetricRegistryRecordCreatesGauge(t *testing.T) {
	reg := NewMetricRegistry()

	fragments, err := reg.Record("vs1", map[string]float64{"cpu-util": 10})
	require.NoError(t, err)
	require.Len(t, fragments, 1)

	assert.Contains(t, fragments[0], "# HELP cpu_util api-vs1 key-cpu-util")
	assert.Contains(t, fragments[0], "# TYPE cpu_util gauge")
	assert.Contains(t, fragments[0], `cpu_util{category="vs1"} 10`)
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, []string{"vs1"}, reg.Categories())
}

func TestMetricRegistryRecordIsIdempotent(t *testing.T) {
	reg := NewMetricRegistry()

	_, err := reg.Record("C", map[string]float64{"cpu-util": 10})
	require.NoError(t, err)
	fragments, err := reg.Record("C", map[string]float64{"cpu-util": 20})
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len(), "exactly one gauge for cpu_util")
	vec, ok := reg.Gauge("cpu_util")
	require.True(t, ok)
	assert.Equal(t, 20.0, promtestutil.ToFloat64(vec.WithLabelValues("C")), "values overwrite, never accumulate")
	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0], `cpu_util{category="C"} 20`)
	assert.NotContains(t, fragments[0], "30")

	again, err := reg.Record("C", map[string]float64{"cpu-util": 20})
	require.NoError(t, err)
	assert.Equal(t, fragments, again)
}

func TestMetricRegistrySharesGaugeAcrossCategories(t *testing.T) {
	reg := NewMetricRegistry()

	_, err := reg.Record("A", map[string]float64{"bytes-in": 100})
	require.NoError(t, err)
	fragments, err := reg.Record("B", map[string]float64{"bytes-in": 200})
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len(), "one gauge per normalized name, process wide")

	global, ok := reg.Gauge("bytes_in")
	require.True(t, ok)
	fromA, ok := reg.CategoryGauge("A", "bytes_in")
	require.True(t, ok)
	fromB, ok := reg.CategoryGauge("B", "bytes_in")
	require.True(t, ok)
	assert.Same(t, global, fromA)
	assert.Same(t, global, fromB)

	assert.Equal(t, 100.0, promtestutil.ToFloat64(global.WithLabelValues("A")))
	assert.Equal(t, 200.0, promtestutil.ToFloat64(global.WithLabelValues("B")))

	require.Len(t, fragments, 1)
	assert.Contains(t, fragments[0], `bytes_in{category="A"} 100`)
	assert.Contains(t, fragments[0], `bytes_in{category="B"} 200`)
}

func TestMetricRegistryHyphenAndUnderscoreShareGauge(t *testing.T) {
	reg := NewMetricRegistry()

	_, err := reg.Record("A", map[string]float64{"bytes-in": 1})
	require.NoError(t, err)
	_, err = reg.Record("B", map[string]float64{"bytes_in": 2})
	require.NoError(t, err)

	assert.Equal(t, 1, reg.Len())
}

func TestMetricRegistryEmptyRecord(t *testing.T) {
	reg := NewMetricRegistry()

	fragments, err := reg.Record("new", map[string]float64{})
	require.NoError(t, err)
	assert.Empty(t, fragments)
	assert.Equal(t, 0, reg.Len(), "no gauges created")
	assert.Empty(t, reg.Categories())

	first, err := reg.Record("vs1", map[string]float64{"curr-conn": 5})
	require.NoError(t, err)
	again, err := reg.Record("vs1", nil)
	require.NoError(t, err)
	assert.Equal(t, first, again, "an empty record returns what the category already holds")
	assert.Equal(t, 1, reg.Len())
}

func TestMetricRegistryOutputScopedToCategory(t *testing.T) {
	reg := NewMetricRegistry()

	_, err := reg.Record("vs1", map[string]float64{"curr-conn": 5})
	require.NoError(t, err)
	fragments, err := reg.Record("eth1", map[string]float64{"rx-pkts": 9})
	require.NoError(t, err)

	body := strings.Join(fragments, "")
	assert.Contains(t, body, "rx_pkts")
	assert.NotContains(t, body, "curr_conn", "gauges never reported by eth1 are not served for it")
}

func TestMetricRegistryFragmentsSortedByName(t *testing.T) {
	reg := NewMetricRegistry()

	fragments, err := reg.Record("vs1", map[string]float64{"zeta": 1, "alpha": 2, "mid-point": 3})
	require.NoError(t, err)
	require.Len(t, fragments, 3)
	assert.True(t, strings.HasPrefix(fragments[0], "# HELP alpha "))
	assert.True(t, strings.HasPrefix(fragments[1], "# HELP mid_point "))
	assert.True(t, strings.HasPrefix(fragments[2], "# HELP zeta "))
}

func TestMetricRegistrySkipsInvalidNames(t *testing.T) {
	reg := NewMetricRegistry()

	fragments, err := reg.Record("vs1", map[string]float64{
		"":          1,
		"a.b":       2,
		"1st-conn":  3,
		"conn/sec":  4,
		"curr-conn": 5,
		"a_b":       6,
	})
	require.NoError(t, err)
	require.Len(t, fragments, 2)
	assert.Contains(t, fragments[0], "a_b{category=\"vs1\"} 6")
	assert.Contains(t, fragments[1], "curr_conn{category=\"vs1\"} 5")
	assert.Equal(t, 2, reg.Len())

	for _, name := range []string{"a.b", "1st_conn", "conn/sec"} {
		_, ok := reg.Gauge(name)
		assert.False(t, ok, "%q must not be registered", name)
	}
	for _, fragment := range fragments {
		assert.NotContains(t, fragment, "{\"", "names must never need quoting")
	}
}

func TestMetricRegistryGather(t *testing.T) {
	reg := NewMetricRegistry()

	_, err := reg.Record("A", map[string]float64{"x": 1, "y": 2})
	require.NoError(t, err)
	_, err = reg.Record("B", map[string]float64{"x": 3})
	require.NoError(t, err)

	count, err := promtestutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "x{A}, x{B} and y{A}")
}

func TestMetricRegistryConcurrentFirstCreation(t *testing.T) {
	reg := NewMetricRegistry()

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		i := i
		category := fmt.Sprintf("cat%d", i%5)
		g.Go(func() error {
			_, err := reg.Record(category, map[string]float64{"bytes-in": float64(i), "bytes-out": 1})
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2, reg.Len(), "concurrent first use must not create duplicates")
	assert.Len(t, reg.Categories(), 5)
	for _, category := range reg.Categories() {
		vec, ok := reg.CategoryGauge(category, "bytes_in")
		require.True(t, ok)
		global, _ := reg.Gauge("bytes_in")
		assert.Same(t, global, vec)
	}
}
