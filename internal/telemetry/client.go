package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"time"

	"github.com/btc-node-dashboard/internal/config"
	"github.com/btc-node-dashboard/internal/metrics"
	"github.com/btc-node-dashboard/internal/types"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// maxBodyBytes caps how much of a telemetry response is read
const maxBodyBytes = 10 * 1024 * 1024

// ErrBodyTooLarge is wrapped by a KindUnknown FetchError when a response
// exceeds the body cap.
var ErrBodyTooLarge = errors.New("response body too large")

// Client talks to the node telemetry API. It does not retry, cache or
// de-duplicate concurrent calls.
type Client struct {
	client        *http.Client
	userAgent     string
	metrics       *metrics.Collector
	blockStatsURL string
	peersURL      string
	maxBody       int64
}

func NewClient(cfg *config.Config, metricsCollector *metrics.Collector) (*Client, error) {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if cfg.Telemetry.SOCKSProxy != "" {
		socks, err := proxy.SOCKS5("tcp", cfg.Telemetry.SOCKSProxy, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("socks5 dialer: %w", err)
		}
		cd, ok := socks.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 dialer does not support contexts")
		}
		transport.DialContext = cd.DialContext
		transport.Proxy = nil
		log.Infof("Telemetry requests go through SOCKS5 proxy %s", cfg.Telemetry.SOCKSProxy)
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.TelemetryTimeout(),
			Transport: transport,
		},
		userAgent:     cfg.Telemetry.UserAgent,
		metrics:       metricsCollector,
		blockStatsURL: cfg.BlockStatsURL(),
		peersURL:      cfg.PeersURL(),
		maxBody:       maxBodyBytes,
	}, nil
}

// FetchJSON issues one GET to url and returns the body verbatim once it is
// known to be valid JSON. Failures are *FetchError.
func (c *Client) FetchJSON(ctx context.Context, url string) (json.RawMessage, error) {
	start := time.Now()
	body, err := c.fetch(ctx, url)
	duration := time.Since(start)

	if c.metrics != nil {
		c.metrics.RecordFetch(endpointLabel(url), result(err), duration.Seconds())
	}
	if err != nil {
		log.WithFields(log.Fields{
			"url":      url,
			"duration": duration.Milliseconds(),
		}).Warnf("Telemetry fetch failed: %v", err)
		return nil, err
	}

	log.WithFields(log.Fields{
		"url":      url,
		"bytes":    len(body),
		"duration": duration.Milliseconds(),
	}).Info("Telemetry fetch complete")
	return body, nil
}

func (c *Client) fetch(ctx context.Context, url string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindUnknown, URL: url, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, c.maxBody))
		return nil, &FetchError{Kind: KindStatus, URL: url, StatusCode: resp.StatusCode}
	}

	// one byte past the cap tells an oversized body from one that fits exactly
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &FetchError{Kind: KindTransport, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(data)) > c.maxBody {
		return nil, &FetchError{Kind: KindUnknown, URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("%w: over %d bytes", ErrBodyTooLarge, c.maxBody)}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FetchError{Kind: KindParse, URL: url, StatusCode: resp.StatusCode, Err: err}
	}

	return raw, nil
}

// FetchBlockStats fetches and decodes the latest block-stats snapshot
func (c *Client) FetchBlockStats(ctx context.Context) (*types.BlockStatsSnapshot, error) {
	raw, err := c.FetchJSON(ctx, c.blockStatsURL)
	if err != nil {
		return nil, err
	}
	snap, err := types.DecodeBlockStats(raw)
	if err != nil {
		log.Warnf("Block stats payload rejected: %v", err)
		return nil, err
	}
	return snap, nil
}

// FetchPeers fetches and decodes the peer list
func (c *Client) FetchPeers(ctx context.Context) ([]types.PeerRecord, error) {
	raw, err := c.FetchJSON(ctx, c.peersURL)
	if err != nil {
		return nil, err
	}
	peers, err := types.DecodePeers(raw)
	if err != nil {
		log.Warnf("Peers payload rejected: %v", err)
		return nil, err
	}
	return peers, nil
}

// endpointLabel keeps the metrics label set small: path only
func endpointLabel(rawURL string) string {
	u, err := neturl.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}
