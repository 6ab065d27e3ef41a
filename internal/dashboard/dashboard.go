package dashboard

import (
	"context"
	"sync"

	"github.com/btc-node-dashboard/internal/blockstats"
	"github.com/btc-node-dashboard/internal/metrics"
	"github.com/btc-node-dashboard/internal/peers"
	"github.com/btc-node-dashboard/internal/telemetry"
	"github.com/btc-node-dashboard/internal/types"
	"github.com/btc-node-dashboard/internal/viewstate"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// View names, used in logs, metrics and API responses
const (
	ViewBlockStats = "block_stats"
	ViewPeers      = "peers"
)

// Source provides the raw telemetry snapshots
type Source interface {
	FetchBlockStats(ctx context.Context) (*types.BlockStatsSnapshot, error)
	FetchPeers(ctx context.Context) ([]types.PeerRecord, error)
}

// Dashboard owns the two views. They share no state and load independently.
type Dashboard struct {
	source  Source
	geo     *peers.GeoResolver
	metrics *metrics.Collector

	mu     sync.RWMutex
	blocks *viewstate.Controller[blockstats.View]
	peers  *viewstate.Controller[peers.Table]
	mounts int
}

// New creates an unmounted dashboard. geo and metricsCollector may be nil.
func New(source Source, geo *peers.GeoResolver, metricsCollector *metrics.Collector) *Dashboard {
	d := &Dashboard{
		source:  source,
		geo:     geo,
		metrics: metricsCollector,
	}
	d.blocks, d.peers = d.newControllers()
	return d
}

// Mount starts loading both views. It fails if the dashboard is already
// mounted; use Remount to reload.
func (d *Dashboard) Mount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mountLocked(ctx)
}

// Remount discards both views, including any load still in flight, and
// mounts fresh ones.
func (d *Dashboard) Remount(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.blocks.Unmount()
	d.peers.Unmount()
	d.blocks, d.peers = d.newControllers()

	return d.mountLocked(ctx)
}

// Unmount tears both views down
func (d *Dashboard) Unmount() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	d.blocks.Unmount()
	d.peers.Unmount()
}

// Settle waits until both current views have finished loading
func (d *Dashboard) Settle(ctx context.Context) error {
	blocks, peerView := d.controllers()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return blocks.Wait(ctx) })
	g.Go(func() error { return peerView.Wait(ctx) })
	return g.Wait()
}

func (d *Dashboard) BlockState() viewstate.State[blockstats.View] {
	blocks, _ := d.controllers()
	return blocks.State()
}

func (d *Dashboard) PeerState() viewstate.State[peers.Table] {
	_, peerView := d.controllers()
	return peerView.State()
}

// Mounts returns how many times the dashboard has been mounted
func (d *Dashboard) Mounts() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.mounts
}

func (d *Dashboard) controllers() (*viewstate.Controller[blockstats.View], *viewstate.Controller[peers.Table]) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.blocks, d.peers
}

func (d *Dashboard) mountLocked(ctx context.Context) error {
	if err := d.blocks.Mount(ctx); err != nil {
		return err
	}
	if err := d.peers.Mount(ctx); err != nil {
		d.blocks.Unmount()
		return err
	}
	d.mounts++
	log.WithField("mount", d.mounts).Info("Dashboard mounted")
	return nil
}

func (d *Dashboard) newControllers() (*viewstate.Controller[blockstats.View], *viewstate.Controller[peers.Table]) {
	blocks := viewstate.NewController(ViewBlockStats, d.loadBlockStats, telemetry.Message)
	blocks.OnChange(func(s viewstate.State[blockstats.View]) {
		d.recordState(ViewBlockStats, s.Phase)
		if s.Phase == viewstate.Ready && d.metrics != nil {
			d.metrics.SetBlockStats(s.Data.Timeline.Len(), s.Data.Counters.Mined, s.Data.Counters.Missing)
		}
	})

	peerView := viewstate.NewController(ViewPeers, d.loadPeers, telemetry.Message)
	peerView.OnChange(func(s viewstate.State[peers.Table]) {
		d.recordState(ViewPeers, s.Phase)
		if s.Phase == viewstate.Ready && d.metrics != nil {
			d.metrics.SetPeers(s.Data.Total)
		}
	})

	return blocks, peerView
}

func (d *Dashboard) loadBlockStats(ctx context.Context) (blockstats.View, error) {
	snapshot, err := d.source.FetchBlockStats(ctx)
	if err != nil {
		return blockstats.View{}, err
	}

	for _, a := range snapshot.Anomalies() {
		log.WithFields(log.Fields{
			"view":  ViewBlockStats,
			"block": snapshot.Block.Hash,
		}).Warnf("Block stats anomaly: %s", a)
	}

	view := blockstats.BuildView(snapshot)
	log.WithFields(log.Fields{
		"block":           view.Current.ShortHash,
		"timeline_points": view.Timeline.Len(),
		"mined":           view.Counters.Mined,
		"missing":         view.Counters.Missing,
	}).Info("Block stats loaded")
	return view, nil
}

func (d *Dashboard) loadPeers(ctx context.Context) (peers.Table, error) {
	records, err := d.source.FetchPeers(ctx)
	if err != nil {
		return peers.Table{}, err
	}

	table := peers.BuildTable(d.geo.Enrich(records))
	log.WithField("peers", table.Total).Info("Peers loaded")
	return table, nil
}

var phaseNames = func() []string {
	out := make([]string, len(viewstate.Phases))
	for i, p := range viewstate.Phases {
		out[i] = p.String()
	}
	return out
}()

func (d *Dashboard) recordState(view string, phase viewstate.Phase) {
	if d.metrics == nil {
		return
	}
	d.metrics.SetViewState(view, phase.String(), phaseNames)
}
