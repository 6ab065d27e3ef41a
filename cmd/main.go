package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/btc-node-dashboard/internal/api"
	"github.com/btc-node-dashboard/internal/config"
	"github.com/btc-node-dashboard/internal/dashboard"
	"github.com/btc-node-dashboard/internal/metrics"
	"github.com/btc-node-dashboard/internal/peers"
	"github.com/btc-node-dashboard/internal/telemetry"
	log "github.com/sirupsen/logrus"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	log.SetFormatter(&log.JSONFormatter{})
	log.SetLevel(log.InfoLevel)
	log.Infof("Starting Bitcoin Node Dashboard v%s", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format == "text" {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	if level, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	metricsCollector := metrics.NewCollector(cfg.Metrics.Namespace, nil)

	client, err := telemetry.NewClient(cfg, metricsCollector)
	if err != nil {
		log.Fatalf("Failed to create telemetry client: %v", err)
	}
	log.WithFields(log.Fields{
		"block_stats": cfg.BlockStatsURL(),
		"peers":       cfg.PeersURL(),
		"socks_proxy": cfg.Telemetry.SOCKSProxy,
	}).Info("Telemetry endpoints configured")

	// Country enrichment is optional
	var geo *peers.GeoResolver
	if cfg.GeoIP.DBPath != "" {
		geo, err = peers.OpenGeoResolver(cfg.GeoIP.DBPath)
		if err != nil {
			log.Warnf("GeoIP enrichment disabled: %v", err)
		} else {
			log.Infof("GeoIP enrichment enabled from %s", cfg.GeoIP.DBPath)
			defer geo.Close()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash := dashboard.New(client, geo, metricsCollector)
	if err := dash.Mount(ctx); err != nil {
		log.Fatalf("Failed to mount dashboard: %v", err)
	}
	go logInitialLoad(ctx, dash)

	apiServer, err := api.NewServer(cfg, dash, metricsCollector)
	if err != nil {
		log.Fatalf("Failed to create API server: %v", err)
	}
	go func() {
		if err := apiServer.Start(); err != nil {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	log.Infof("Dashboard available on %s", cfg.API.Addr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully...")
	dash.Unmount()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("API server shutdown error: %v", err)
	}

	log.Info("Shutdown complete")
}

// logInitialLoad reports how the first mount settled
func logInitialLoad(ctx context.Context, dash *dashboard.Dashboard) {
	start := time.Now()
	if err := dash.Settle(ctx); err != nil {
		return
	}

	bs, ps := dash.BlockState(), dash.PeerState()
	log.WithFields(log.Fields{
		"block_stats": bs.Phase.String(),
		"peers":       ps.Phase.String(),
		"duration":    time.Since(start).String(),
	}).Info("Initial load complete")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	log.Infof("Memory: Alloc=%dMB, Sys=%dMB, NumGC=%d, Goroutines=%d",
		m.Alloc/1024/1024, m.Sys/1024/1024, m.NumGC, runtime.NumGoroutine())
}
