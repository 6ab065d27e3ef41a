package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_ViewState(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())
	states := []string{"loading", "ready", "error"}

	c.SetViewState("peers", "loading", states)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.viewState.WithLabelValues("peers", "loading")))

	c.SetViewState("peers", "ready", states)
	assert.Equal(t, 0.0, testutil.ToFloat64(c.viewState.WithLabelValues("peers", "loading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.viewState.WithLabelValues("peers", "ready")))
}

func TestCollector_Payloads(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.SetPeers(8)
	c.SetBlockStats(30, 3120, 12)
	c.RecordFetch("/peers", "success", 0.2)
	c.RecordFetch("/peers", "status", 0.1)

	assert.Equal(t, 8.0, testutil.ToFloat64(c.peers))
	assert.Equal(t, 30.0, testutil.ToFloat64(c.timelinePoints))
	assert.Equal(t, 12.0, testutil.ToFloat64(c.missingTxs))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fetchesTotal.WithLabelValues("/peers", "status")))
}
