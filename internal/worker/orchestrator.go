// Package worker ties the caching, storage and messaging pieces together
// into the offline worker proper: install/activate lifecycle, sync-trigger
// servicing, route refresh and the connectivity watcher.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/duetapp/duet/internal/cache"
	"github.com/duetapp/duet/internal/common"
	"github.com/duetapp/duet/internal/localstore"
	"github.com/duetapp/duet/internal/logging"
	"github.com/duetapp/duet/internal/message"
	"github.com/duetapp/duet/internal/outbox"
	"github.com/duetapp/duet/internal/router"
)

// Broadcaster fans a message out to every connected foreground client.
// *Hub satisfies it.
type Broadcaster interface {
	Broadcast(ctx context.Context, m message.Message)
}

// DefaultAssets is the build-independent part of the precache manifest.
// Versioned bundle files under /assets/ are cached on first use instead,
// their names are not known ahead of time.
var DefaultAssets = []string{
	"/manifest.webmanifest",
	"/icon-192.png",
	"/icon-512.png",
}

// Orchestrator drives the worker lifecycle. Install failures for individual
// URLs are absorbed: a partially warmed cache is better than no worker.
type Orchestrator struct {
	cache    *cache.Manager
	store    *localstore.Store
	hub      Broadcaster
	triggers TriggerScheduler
	origin   string
	assets   []string
	log      logging.Logger
}

func NewOrchestrator(cm *cache.Manager, store *localstore.Store, hub Broadcaster,
	triggers TriggerScheduler, origin string, assets []string, log logging.Logger) *Orchestrator {
	if assets == nil {
		assets = DefaultAssets
	}
	return &Orchestrator{
		cache:    cm,
		store:    store,
		hub:      hub,
		triggers: triggers,
		origin:   origin,
		assets:   assets,
		log:      log.With("component", "worker"),
	}
}

// Install warms the static and pages partitions and opens every collection.
// Individual precache failures are logged by the cache layer and do not
// fail the install.
func (o *Orchestrator) Install(ctx context.Context) error {
	o.cache.Precache(ctx, o.absolute(o.assets), cache.ClassStatic)
	o.cache.Precache(ctx, o.absolute(router.Routes), cache.ClassPages)

	for _, name := range localstore.Collections {
		if _, err := o.store.Collection(name); err != nil {
			return fmt.Errorf("failed to open collection %q: %w", name, err)
		}
	}
	o.log.Info(ctx, "install complete")
	return nil
}

// Activate purges every partition that does not belong to the current
// version.
func (o *Orchestrator) Activate(ctx context.Context) error {
	if err := o.cache.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge stale partitions: %w", err)
	}
	o.log.Info(ctx, "activate complete")
	return nil
}

// HandleSyncTrigger services one background-sync tag. The outbox tag is
// delegated to the foreground, which owns the authenticated session; the
// pages tag refreshes routes in place. Unknown tags are ignored.
func (o *Orchestrator) HandleSyncTrigger(ctx context.Context, tag string) {
	switch tag {
	case outbox.SyncTag:
		o.hub.Broadcast(ctx, message.Message{Type: message.TypeFlushOutbox})
	case TagPagesSync:
		o.RefreshRoutes(ctx)
		o.hub.Broadcast(ctx, message.Message{Type: message.TypeRefreshDone})
	default:
		o.log.Debug(ctx, "ignoring unknown sync tag", "tag", tag)
	}
}

// ServePendingTriggers fires every durably registered trigger and clears
// it. A trigger registered while the worker was down is serviced here on
// the next opportunity.
func (o *Orchestrator) ServePendingTriggers(ctx context.Context) {
	tags, err := o.triggers.Pending(ctx)
	if err != nil {
		o.log.Warn(ctx, "failed to list pending sync triggers", "error", err)
		return
	}
	for _, tag := range tags {
		o.HandleSyncTrigger(ctx, tag)
		if err := o.triggers.Clear(ctx, tag); err != nil {
			o.log.Warn(ctx, "failed to clear sync trigger", "tag", tag, "error", err)
		}
	}
}

// RefreshRoutes re-fetches every allow-listed route and the precache assets,
// overwriting their cached entries. Each URL gets a couple of retries;
// routes that still fail are skipped so one dead route cannot starve the
// rest.
func (o *Orchestrator) RefreshRoutes(ctx context.Context) {
	for _, u := range o.absolute(router.Routes) {
		o.refreshOne(ctx, u, cache.ClassPages)
	}
	for _, u := range o.absolute(o.assets) {
		o.refreshOne(ctx, u, cache.ClassStatic)
	}
}

func (o *Orchestrator) refreshOne(ctx context.Context, url string, class cache.Class) {
	op := func() error {
		return o.cache.Refresh(ctx, url, class)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, b); err != nil {
		o.log.Warn(ctx, "route refresh failed", "url", url, "error", err)
	}
}

// OnOnline runs on the offline-to-online transition: the foreground is told
// to flush its outbox immediately, a pages refresh is scheduled through
// background sync (or run directly when sync is unsupported), and any
// triggers that accumulated while offline are serviced.
func (o *Orchestrator) OnOnline(ctx context.Context) {
	o.hub.Broadcast(ctx, message.Message{Type: message.TypeFlushOutbox})

	if err := o.triggers.Register(ctx, TagPagesSync); err != nil {
		if errors.Is(err, common.ErrSyncUnsupported) {
			o.HandleSyncTrigger(ctx, TagPagesSync)
		} else {
			o.log.Warn(ctx, "failed to register pages sync", "error", err)
		}
	}

	o.ServePendingTriggers(ctx)
}

// HandleMessage dispatches one foreground message. The switch is exhaustive
// over the message type set; worker-originated kinds arriving from a client
// are dropped with a log line rather than treated as unknown.
func (o *Orchestrator) HandleMessage(ctx context.Context, m message.Message) (*message.Message, error) {
	switch m.Type {
	case message.TypeSkipWaiting:
		if err := o.Activate(ctx); err != nil {
			return nil, err
		}
		return nil, nil

	case message.TypeOfflinePut:
		col, err := o.store.Collection(m.Store)
		if err != nil {
			return nil, err
		}
		var rec localstore.Record
		if err := json.Unmarshal(m.Value, &rec); err != nil {
			return nil, fmt.Errorf("malformed record: %w", err)
		}
		if err := col.Put(ctx, rec); err != nil {
			return nil, err
		}
		return nil, nil

	case message.TypeOfflineGetAll:
		col, err := o.store.Collection(m.Store)
		if err != nil {
			return nil, err
		}
		records, err := col.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		items, err := json.Marshal(records)
		if err != nil {
			return nil, err
		}
		return &message.Message{Type: message.TypeOfflineResult, Store: m.Store, Items: items}, nil

	case message.TypeRefreshRoutes:
		o.HandleSyncTrigger(ctx, TagPagesSync)
		return nil, nil

	case message.TypeOfflineResult, message.TypeFlushOutbox, message.TypeRefreshDone,
		message.TypeNotify, message.TypeSubscriptionRenewed:
		o.log.Debug(ctx, "dropping worker-originated message from client", "type", m.Type)
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownMessage, m.Type)
	}
}

func (o *Orchestrator) absolute(paths []string) []string {
	urls := make([]string, len(paths))
	for i, p := range paths {
		urls[i] = o.origin + p
	}
	return urls
}
