package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/duetapp/duet/internal/flagx"
	"github.com/duetapp/duet/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds.
type JsonConfig struct {
	ListenAddr          string         `json:"listen_addr"`
	AppOrigin           string         `json:"app_origin"`
	RemoteBaseURL       string         `json:"remote_base_url"`
	PushRelayURL        string         `json:"push_relay_url"`
	DBPath              string         `json:"db_path"`
	Version             string         `json:"version"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	NetworkFirstTimeout timex.Duration `json:"network_first_timeout"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags via flagx.JsonConfigFlags; when no
// path is given the function is a no-op. Empty JSON fields keep the value
// already in cfg so the defaults -> JSON -> flags precedence holds.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ListenAddr != "" {
		cfg.ListenAddr = jc.ListenAddr
	}
	if jc.AppOrigin != "" {
		cfg.AppOrigin = jc.AppOrigin
	}
	if jc.RemoteBaseURL != "" {
		cfg.RemoteBaseURL = jc.RemoteBaseURL
	}
	if jc.PushRelayURL != "" {
		cfg.PushRelayURL = jc.PushRelayURL
	}
	if jc.DBPath != "" {
		cfg.DBPath = jc.DBPath
	}
	if jc.Version != "" {
		cfg.Version = jc.Version
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.NetworkFirstTimeout.Duration != 0 {
		cfg.NetworkFirstTimeout = time.Duration(jc.NetworkFirstTimeout.Duration)
	}
}
