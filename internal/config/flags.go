package config

import (
	"flag"
	"os"
	"time"

	"github.com/duetapp/duet/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   listen address for the worker endpoint
//	-o string   application origin
//	-r string   remote store base URL
//	-p string   push relay websocket URL
//	-d string   sqlite database path
//	-v string   cache version tag
//	-i int      online check interval in seconds
//	-t int      network-first timeout in seconds
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-o", "-r", "-p", "-d", "-v", "-i", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ListenAddr, "a", cfg.ListenAddr, "listen address for the worker endpoint")
	fs.StringVar(&cfg.AppOrigin, "o", cfg.AppOrigin, "application origin")
	fs.StringVar(&cfg.RemoteBaseURL, "r", cfg.RemoteBaseURL, "remote store base URL")
	fs.StringVar(&cfg.PushRelayURL, "p", cfg.PushRelayURL, "push relay websocket URL")
	fs.StringVar(&cfg.DBPath, "d", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.Version, "v", cfg.Version, "cache version tag")
	onlineCheckInterval := fs.Int("i", int(cfg.OnlineCheckInterval.Seconds()), "online check interval (in seconds)")
	networkFirstTimeout := fs.Int("t", int(cfg.NetworkFirstTimeout.Seconds()), "network-first timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.OnlineCheckInterval = time.Duration(*onlineCheckInterval) * time.Second
	cfg.NetworkFirstTimeout = time.Duration(*networkFirstTimeout) * time.Second
}
