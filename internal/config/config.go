package config

import "time"

// Config holds runtime settings for the Duet sync worker.
//
// Fields:
//   - ListenAddr: host:port the worker's websocket/metrics endpoint binds to.
//   - AppOrigin: origin (scheme://host[:port]) of the application; only
//     requests to this origin are intercepted by the router.
//   - RemoteBaseURL: base URL of the remote store's REST surface.
//   - PushRelayURL: websocket URL of the push relay delivering push events.
//   - DBPath: path of the sqlite database holding collections, the outbox
//     and the response cache.
//   - Version: version tag embedded in cache partition names; changing it
//     on deploy busts stale partitions on activation.
//   - OnlineCheckInterval: how often the worker probes remote reachability.
//   - NetworkFirstTimeout: deadline for the network leg of the
//     network-first strategy before falling back to cache.
type Config struct {
	ListenAddr          string
	AppOrigin           string
	RemoteBaseURL       string
	PushRelayURL        string
	DBPath              string
	Version             string
	OnlineCheckInterval time.Duration
	NetworkFirstTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ListenAddr = "127.0.0.1:8787"
	c.AppOrigin = "http://127.0.0.1:3000"
	c.RemoteBaseURL = "http://127.0.0.1:54321"
	c.PushRelayURL = ""
	c.DBPath = "duet.db"
	c.Version = "dev"
	c.OnlineCheckInterval = 3 * time.Second
	c.NetworkFirstTimeout = 8 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
