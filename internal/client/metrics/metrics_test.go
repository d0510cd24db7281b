package metrics

import (
	"testing"
	"time"

	"github.com/agita-app/agita/internal/common"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *Metrics) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := m.Registry.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func counterValue(mf *dto.MetricFamily, labels map[string]string) float64 {
	for _, m := range mf.GetMetric() {
		match := true
		for _, lp := range m.GetLabel() {
			if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
				match = false
			}
		}
		if match {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.CacheLookup("profiles", "hit")
	m.CacheLookup("profiles", "hit")
	m.CacheLookup("profiles", "miss")
	m.CacheLoad("profiles", nil)
	m.CacheLoad("profiles", common.ErrUnavailable)
	m.CacheEntries(3)
	m.StoreRequest("query", "rewards", 20*time.Millisecond, nil)
	m.StoreRequest("upsert", "rewards", 5*time.Millisecond, common.ErrConflict)
	m.ObjectRequest("upload", "avatars", nil)

	fams := gather(t, m)

	lookups := fams["agita_cache_lookups_total"]
	require.NotNil(t, lookups)
	assert.Equal(t, 2.0, counterValue(lookups, map[string]string{"collection": "profiles", "result": "hit"}))
	assert.Equal(t, 1.0, counterValue(lookups, map[string]string{"collection": "profiles", "result": "miss"}))

	loads := fams["agita_cache_loads_total"]
	require.NotNil(t, loads)
	assert.Equal(t, 1.0, counterValue(loads, map[string]string{"outcome": "transport"}))

	assert.Equal(t, 3.0, fams["agita_cache_entries"].GetMetric()[0].GetGauge().GetValue())

	reqs := fams["agita_store_requests_total"]
	require.NotNil(t, reqs)
	assert.Equal(t, 1.0, counterValue(reqs, map[string]string{"operation": "upsert", "outcome": "conflict"}))

	hist := fams["agita_store_request_duration_seconds"]
	require.NotNil(t, hist)
	assert.Len(t, hist.GetMetric(), 2)

	assert.Equal(t, 1.0, counterValue(fams["agita_objects_requests_total"], map[string]string{"bucket": "avatars"}))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CacheLookup("x", "hit")
		m.CacheLoad("x", nil)
		m.CacheEntries(1)
		m.StoreRequest("query", "x", time.Second, nil)
		m.ObjectRequest("upload", "x", nil)
	})
}
