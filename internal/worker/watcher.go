package worker

import (
	"context"
	"time"

	"github.com/duetapp/duet/internal/logging"
)

// Pinger reports whether the remote is reachable right now.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Mode is the watcher's last observed connectivity state.
type Mode string

const (
	ModeUnknown Mode = ""
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
)

const probeTimeout = 3 * time.Second

// Watcher polls the remote and reports connectivity transitions. Each
// offline-to-online edge (including the first successful probe) invokes
// onOnline once.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	onOnline func(ctx context.Context)
	log      logging.Logger

	mode Mode
}

func NewWatcher(p Pinger, interval time.Duration, onOnline func(ctx context.Context), log logging.Logger) *Watcher {
	return &Watcher{
		pinger:   p,
		interval: interval,
		onOnline: onOnline,
		log:      log.With("component", "watcher"),
		mode:     ModeUnknown,
	}
}

// SetOnOnline replaces the online-edge callback. The watcher and the
// outbox reference each other, so one side has to be wired late; call this
// before Run.
func (w *Watcher) SetOnOnline(fn func(ctx context.Context)) {
	w.onOnline = fn
}

// Online probes the remote once, bounded by the probe timeout. Usable as
// the outbox's connectivity check.
func (w *Watcher) Online(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return w.pinger.Ping(ctx) == nil
}

// Run probes immediately and then on every tick until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	if w.Online(ctx) {
		w.setMode(ctx, ModeOnline)
	} else {
		w.setMode(ctx, ModeOffline)
	}
}

func (w *Watcher) setMode(ctx context.Context, m Mode) {
	if w.mode == m {
		return
	}
	w.mode = m
	w.log.Info(ctx, "connectivity changed", "mode", m)
	if m == ModeOnline && w.onOnline != nil {
		w.onOnline(ctx)
	}
}
