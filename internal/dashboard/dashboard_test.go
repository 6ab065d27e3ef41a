package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btc-node-dashboard/internal/config"
	"github.com/btc-node-dashboard/internal/metrics"
	"github.com/btc-node-dashboard/internal/telemetry"
	"github.com/btc-node-dashboard/internal/types"
	"github.com/btc-node-dashboard/internal/viewstate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockStatsBody = `{
	"block": {"hash": "00000000000000000002b5ad4ec6b5de0ff2f6a7c7d1b1e0b8c4c3a1f9e2d7c6", "time_unix_millis": 1700000000000, "connected_time_unix_millis": 1700000003000},
	"prev_block": {"hash": "000000000000000000017e4d3c2b1a09f8e7d6c5b4a3928170f6e5d4c3b2a190", "time_unix_millis": 1699999400000, "connected_time_unix_millis": 1699999401000},
	"mined_tx_count": 3120,
	"missing_from_mempool_tx_count": 12,
	"propagation_timeline": [
		{"time_unix_millis": 1000, "tx_count": 3},
		{"time_unix_millis": 2000, "tx_count": 7}
	]
}`

// fakeNode serves the two telemetry endpoints. Responses can be swapped
// between mounts.
type fakeNode struct {
	blockStatus atomic.Int32
	blockBody   atomic.Value
	peersStatus atomic.Int32
	peersBody   atomic.Value
}

func newFakeNode(t *testing.T) (*fakeNode, *httptest.Server) {
	t.Helper()
	n := &fakeNode{}
	n.setBlockStats(http.StatusOK, blockStatsBody)
	n.setPeers(http.StatusOK, `[]`)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/block-stats/latest":
			w.WriteHeader(int(n.blockStatus.Load()))
			fmt.Fprint(w, n.blockBody.Load().(string))
		case "/peers":
			w.WriteHeader(int(n.peersStatus.Load()))
			fmt.Fprint(w, n.peersBody.Load().(string))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return n, srv
}

func (n *fakeNode) setBlockStats(status int, body string) {
	n.blockStatus.Store(int32(status))
	n.blockBody.Store(body)
}

func (n *fakeNode) setPeers(status int, body string) {
	n.peersStatus.Store(int32(status))
	n.peersBody.Store(body)
}

func newTestDashboard(t *testing.T, baseURL string) (*Dashboard, *prometheus.Registry) {
	t.Helper()
	cfg := &config.Config{
		Telemetry: config.TelemetryConfig{
			BaseURL:        baseURL,
			BlockStatsPath: "/block-stats/latest",
			PeersPath:      "/peers",
			TimeoutMs:      2000,
		},
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewCollector("test", reg)
	client, err := telemetry.NewClient(cfg, m)
	require.NoError(t, err)
	return New(client, nil, m), reg
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v != lp.GetValue() {
					continue series
				}
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("gauge %s %v not found", name, labels)
	return 0
}

func settle(t *testing.T, d *Dashboard) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Settle(ctx))
}

func TestDashboard_PeersServerError(t *testing.T) {
	node, srv := newFakeNode(t)
	node.setPeers(http.StatusInternalServerError, `{"error": "internal"}`)
	d, _ := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)

	ps := d.PeerState()
	assert.Equal(t, viewstate.Error, ps.Phase)
	assert.Contains(t, ps.Message, "500")
	assert.Empty(t, ps.Data.Rows)

	assert.Equal(t, viewstate.Ready, d.BlockState().Phase, "views load independently")
}

func TestDashboard_BlockStatsChart(t *testing.T) {
	_, srv := newFakeNode(t)
	d, reg := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)

	bs := d.BlockState()
	require.Equal(t, viewstate.Ready, bs.Phase)
	require.Len(t, bs.Data.Chart.Points, 2)
	assert.Equal(t, int64(3), bs.Data.Chart.Points[0].Count)
	assert.Equal(t, int64(7), bs.Data.Chart.Points[1].Count)
	assert.Equal(t, "3,120", bs.Data.Counters.MinedDisplay)

	assert.Equal(t, 2.0, gaugeValue(t, reg, "test_propagation_timeline_points", nil))
	assert.Equal(t, 1.0, gaugeValue(t, reg, "test_view_state", map[string]string{"view": ViewBlockStats, "state": "ready"}))
	assert.Equal(t, 0.0, gaugeValue(t, reg, "test_view_state", map[string]string{"view": ViewBlockStats, "state": "loading"}))
}

func TestDashboard_SinglePeer(t *testing.T) {
	node, srv := newFakeNode(t)
	node.setPeers(http.StatusOK, `[{"ip": "1.2.3.4", "ip_version": "IPv4", "inbound": false, "ping": 0.05}]`)
	d, reg := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)

	ps := d.PeerState()
	require.Equal(t, viewstate.Ready, ps.Phase)
	require.Len(t, ps.Data.Rows, 1)
	row := ps.Data.Rows[0]
	assert.Equal(t, 1, row.ID)
	assert.Equal(t, "outbound-full-relay", row.ConnectionType)
	assert.Equal(t, "Unknown", row.Country)
	assert.Equal(t, int64(50), row.Ping)

	assert.Equal(t, 1.0, gaugeValue(t, reg, "test_peers", nil))
}

func TestDashboard_MissingTimeline(t *testing.T) {
	node, srv := newFakeNode(t)
	node.setBlockStats(http.StatusOK, `{
		"block": {"hash": "a", "time_unix_millis": 1},
		"prev_block": {"hash": "b", "time_unix_millis": 0},
		"mined_tx_count": 1,
		"missing_from_mempool_tx_count": 0
	}`)
	d, _ := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)

	bs := d.BlockState()
	assert.Equal(t, viewstate.Error, bs.Phase)
	assert.Equal(t, `missing required field "propagation_timeline"`, bs.Message)
}

func TestDashboard_MalformedJSON(t *testing.T) {
	node, srv := newFakeNode(t)
	node.setBlockStats(http.StatusOK, `{"block": `)
	d, _ := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)

	bs := d.BlockState()
	assert.Equal(t, viewstate.Error, bs.Phase)
	assert.Equal(t, "unexpected end of JSON input", bs.Message)
}

func TestDashboard_Remount(t *testing.T) {
	node, srv := newFakeNode(t)
	node.setPeers(http.StatusServiceUnavailable, ``)
	d, _ := newTestDashboard(t, srv.URL)

	require.NoError(t, d.Mount(context.Background()))
	settle(t, d)
	require.Equal(t, viewstate.Error, d.PeerState().Phase)
	assert.ErrorIs(t, d.Mount(context.Background()), viewstate.ErrAlreadyMounted)

	node.setPeers(http.StatusOK, `[{"ip": "::1", "ip_version": "IPv6", "inbound": true, "ping": 0.1234}]`)
	require.NoError(t, d.Remount(context.Background()))
	settle(t, d)

	ps := d.PeerState()
	require.Equal(t, viewstate.Ready, ps.Phase)
	assert.Equal(t, "inbound", ps.Data.Rows[0].ConnectionType)
	assert.Equal(t, int64(123), ps.Data.Rows[0].Ping)
	assert.Equal(t, 2, d.Mounts())
}

type stubSource struct {
	block   func(ctx context.Context) (*types.BlockStatsSnapshot, error)
	records []types.PeerRecord
}

func (s stubSource) FetchBlockStats(ctx context.Context) (*types.BlockStatsSnapshot, error) {
	return s.block(ctx)
}

func (s stubSource) FetchPeers(ctx context.Context) ([]types.PeerRecord, error) {
	return s.records, nil
}

func TestDashboard_RemountDiscardsSlowLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := stubSource{
		block: func(ctx context.Context) (*types.BlockStatsSnapshot, error) {
			if calls.Add(1) == 1 {
				<-release
				return &types.BlockStatsSnapshot{MinedTxCount: 1}, nil
			}
			return &types.BlockStatsSnapshot{MinedTxCount: 2, PropagationTimeline: []types.TimelineSample{}}, nil
		},
	}
	d := New(src, nil, nil)

	require.NoError(t, d.Mount(context.Background()))
	first, _ := d.controllers()
	require.NoError(t, d.Remount(context.Background()))
	settle(t, d)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Wait(ctx))

	assert.Equal(t, viewstate.Loading, first.State().Phase)
	bs := d.BlockState()
	require.Equal(t, viewstate.Ready, bs.Phase)
	assert.Equal(t, int64(2), bs.Data.Counters.Mined)
}

func TestDashboard_SettleTimeout(t *testing.T) {
	src := stubSource{
		block: func(ctx context.Context) (*types.BlockStatsSnapshot, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	d := New(src, nil, nil)
	require.NoError(t, d.Mount(context.Background()))
	defer d.Unmount()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Settle(ctx), context.DeadlineExceeded)
	assert.Equal(t, viewstate.Loading, d.BlockState().Phase)
}
