package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Telemetry TelemetryConfig `json:"telemetry"`
	API       APIConfig       `json:"api"`
	GeoIP     GeoIPConfig     `json:"geoip"`
	Metrics   MetricsConfig   `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
}

type TelemetryConfig struct {
	BaseURL        string `json:"base_url"`
	BlockStatsPath string `json:"block_stats_path"`
	PeersPath      string `json:"peers_path"`
	TimeoutMs      int    `json:"timeout_ms"`
	UserAgent      string `json:"user_agent"`
	SOCKSProxy     string `json:"socks_proxy"` // host:port, empty dials directly
}

type APIConfig struct {
	Addr               string `json:"addr"`
	RenderWaitMs       int    `json:"render_wait_ms"` // how long GET / waits for views to settle
	DefaultPageSize    int    `json:"default_page_size"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
	EnableIPRateLimit  bool   `json:"enable_ip_rate_limit"`
	EnableAPIKeyAuth   bool   `json:"enable_api_key_auth"` // guards POST /reload
	APIKeyEnv          string `json:"api_key_env"`
}

type GeoIPConfig struct {
	DBPath string `json:"db_path"` // MaxMind country/city database, optional
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled"`
	Endpoint  string `json:"endpoint"`
	Namespace string `json:"namespace"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // "json" or "text"
}

// PageSizes are the page sizes the peer table accepts
var PageSizes = []int{10, 20, 50}

// Load reads configuration from a JSON file, then .env and the environment.
// A missing file is not an error: defaults apply.
func Load(filePath string) (*Config, error) {
	var cfg Config

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config JSON: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// .env is optional
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if val := os.Getenv("TELEMETRY_BASE_URL"); val != "" {
		c.Telemetry.BaseURL = val
	}
	if val := os.Getenv("TELEMETRY_SOCKS_PROXY"); val != "" {
		c.Telemetry.SOCKSProxy = val
	}
	if val := os.Getenv("TELEMETRY_TIMEOUT_MS"); val != "" {
		ms, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("TELEMETRY_TIMEOUT_MS must be an integer, got %q", val)
		}
		c.Telemetry.TimeoutMs = ms
	}
	if val := os.Getenv("API_ADDR"); val != "" {
		c.API.Addr = val
	}
	if val := os.Getenv("GEOIP_DB_PATH"); val != "" {
		c.GeoIP.DBPath = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Telemetry.BaseURL == "" {
		c.Telemetry.BaseURL = "https://bitcoin-monitor-flare.stringintech.workers.dev"
	}
	if c.Telemetry.BlockStatsPath == "" {
		c.Telemetry.BlockStatsPath = "/block-stats/latest"
	}
	if c.Telemetry.PeersPath == "" {
		c.Telemetry.PeersPath = "/peers"
	}
	if c.Telemetry.TimeoutMs == 0 {
		c.Telemetry.TimeoutMs = 15000
	}
	if c.Telemetry.UserAgent == "" {
		c.Telemetry.UserAgent = "btc-node-dashboard/1.0"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.API.RenderWaitMs == 0 {
		c.API.RenderWaitMs = 2000
	}
	if c.API.DefaultPageSize == 0 {
		c.API.DefaultPageSize = 20
	}
	if c.API.RateLimitPerMinute == 0 {
		c.API.RateLimitPerMinute = 600
	}
	if c.API.APIKeyEnv == "" {
		c.API.APIKeyEnv = "DASHBOARD_API_KEY"
	}
	if c.Metrics.Endpoint == "" {
		c.Metrics.Endpoint = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "btcdash"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	u, err := url.Parse(c.Telemetry.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("telemetry.base_url must be an absolute http(s) URL")
	}
	if !strings.HasPrefix(c.Telemetry.BlockStatsPath, "/") || !strings.HasPrefix(c.Telemetry.PeersPath, "/") {
		return fmt.Errorf("telemetry paths must start with '/'")
	}
	if c.Telemetry.TimeoutMs < 100 || c.Telemetry.TimeoutMs > 300000 {
		return fmt.Errorf("telemetry.timeout_ms must be between 100 and 300000")
	}
	if c.API.RenderWaitMs < 0 {
		return fmt.Errorf("api.render_wait_ms must not be negative")
	}
	if !ValidPageSize(c.API.DefaultPageSize) {
		return fmt.Errorf("api.default_page_size must be one of %v", PageSizes)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("logging.format must be 'json' or 'text'")
	}
	return nil
}

// ValidPageSize reports whether n is one of PageSizes
func ValidPageSize(n int) bool {
	for _, s := range PageSizes {
		if s == n {
			return true
		}
	}
	return false
}

func (c *Config) BlockStatsURL() string {
	return strings.TrimRight(c.Telemetry.BaseURL, "/") + c.Telemetry.BlockStatsPath
}

func (c *Config) PeersURL() string {
	return strings.TrimRight(c.Telemetry.BaseURL, "/") + c.Telemetry.PeersPath
}

func (c *Config) TelemetryTimeout() time.Duration {
	return time.Duration(c.Telemetry.TimeoutMs) * time.Millisecond
}

func (c *Config) RenderWait() time.Duration {
	return time.Duration(c.API.RenderWaitMs) * time.Millisecond
}
