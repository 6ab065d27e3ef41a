package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Collector struct {
	// Telemetry fetches
	fetchesTotal  *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// View lifecycle
	viewState *prometheus.GaugeVec

	// Last ready payloads
	peers          prometheus.Gauge
	timelinePoints prometheus.Gauge
	minedTxs       prometheus.Gauge
	missingTxs     prometheus.Gauge

	// API metrics
	apiRequests *prometheus.CounterVec
	apiDuration *prometheus.HistogramVec
}

// NewCollector registers the dashboard metrics on reg. Passing nil uses the
// default registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	c := &Collector{
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_fetches_total",
				Help:      "Total number of telemetry fetches by endpoint and result",
			},
			[]string{"endpoint", "result"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "telemetry_fetch_duration_seconds",
				Help:      "Telemetry fetch duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		viewState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "view_state",
				Help:      "1 for the current lifecycle state of each view, 0 otherwise",
			},
			[]string{"view", "state"},
		),
		peers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peers",
				Help:      "Number of connected peers in the last peer snapshot",
			},
		),
		timelinePoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "propagation_timeline_points",
				Help:      "Number of samples in the last propagation timeline",
			},
		),
		minedTxs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_mined_txs",
				Help:      "Transactions in the latest block",
			},
		),
		missingTxs: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "block_missing_from_mempool_txs",
				Help:      "Transactions of the latest block never seen in the mempool",
			},
		),
		apiRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		apiDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "API request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
	}

	return c
}

func (c *Collector) RecordFetch(endpoint, result string, seconds float64) {
	c.fetchesTotal.WithLabelValues(endpoint, result).Inc()
	c.fetchDuration.WithLabelValues(endpoint).Observe(seconds)
}

// SetViewState marks state as the current one for view and clears the others
func (c *Collector) SetViewState(view, state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		c.viewState.WithLabelValues(view, s).Set(v)
	}
}

func (c *Collector) SetPeers(count int) {
	c.peers.Set(float64(count))
}

func (c *Collector) SetBlockStats(timelinePoints int, mined, missing int64) {
	c.timelinePoints.Set(float64(timelinePoints))
	c.minedTxs.Set(float64(mined))
	c.missingTxs.Set(float64(missing))
}

func (c *Collector) RecordAPIRequest(method, endpoint, status string) {
	c.apiRequests.WithLabelValues(method, endpoint, status).Inc()
}

func (c *Collector) RecordAPIDuration(method, endpoint string, seconds float64) {
	c.apiDuration.WithLabelValues(method, endpoint).Observe(seconds)
}
