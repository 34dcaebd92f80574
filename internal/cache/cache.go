// Package cache maintains the worker's three version-tagged partitions of
// cached HTTP responses and the strategies that resolve requests against
// them. A cache-write failure never fails the user-visible fetch; storage
// errors are logged and swallowed.
package cache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/duetapp/duet/internal/dbx"
	"github.com/duetapp/duet/internal/logging"
)

// Class names one of the three cache partitions. The stored partition name
// embeds the version tag so activation can purge stale partitions wholesale.
type Class string

const (
	ClassStatic  Class = "static"
	ClassPages   Class = "pages"
	ClassRuntime Class = "runtime"
)

// Classes lists every partition class.
var Classes = []Class{ClassStatic, ClassPages, ClassRuntime}

// Fetcher performs the network leg of a strategy. *http.Client satisfies it.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Manager implements the three response-resolution strategies over the
// cached_responses table.
type Manager struct {
	db         dbx.DBTX
	fetch      Fetcher
	version    string
	netTimeout time.Duration
	log        logging.Logger

	revalidations sync.WaitGroup
}

// NewManager binds a Manager to db. netTimeout bounds the network leg of
// the network-first strategy; zero disables the deadline.
func NewManager(db dbx.DBTX, fetch Fetcher, version string, netTimeout time.Duration, log logging.Logger) *Manager {
	return &Manager{
		db:         db,
		fetch:      fetch,
		version:    version,
		netTimeout: netTimeout,
		log:        log.With("component", "cache"),
	}
}

// Partition returns the version-tagged partition name for a class.
func (m *Manager) Partition(class Class) string {
	return fmt.Sprintf("%s-%s", class, m.version)
}

// CacheFirst returns the cached entry if present; otherwise it fetches and,
// for a GET 200, stores the response before returning it. Used for
// immutable binary assets.
func (m *Manager) CacheFirst(ctx context.Context, req *http.Request, class Class) (*http.Response, error) {
	if e, err := m.lookup(ctx, m.Partition(class), req.URL.String()); err == nil {
		cacheHitsTotal.WithLabelValues(string(class), "cache_first").Inc()
		return e.response(req), nil
	}
	cacheMissesTotal.WithLabelValues(string(class), "cache_first").Inc()
	return m.fetchAndStore(ctx, req, class)
}

// NetworkFirst tries the network within the configured deadline; a GET 200
// is stored and returned. On failure it falls back to the cached entry,
// first by exact URL and then ignoring query-string differences. With
// neither, the fetch error propagates.
func (m *Manager) NetworkFirst(ctx context.Context, req *http.Request, class Class) (*http.Response, error) {
	fctx := ctx
	if m.netTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, m.netTimeout)
		defer cancel()
	}

	resp, err := m.fetch.Do(req.Clone(fctx))
	if err == nil {
		snap, serr := snapshot(resp)
		if serr != nil {
			err = serr
		} else {
			if cacheable(req, snap) {
				m.storeQuiet(ctx, class, req.URL.String(), snap)
			}
			return snap.response(req), nil
		}
	}

	partition := m.Partition(class)
	if e, lerr := m.lookup(ctx, partition, req.URL.String()); lerr == nil {
		cacheHitsTotal.WithLabelValues(string(class), "network_first").Inc()
		return e.response(req), nil
	}
	if e, lerr := m.lookupIgnoreQuery(ctx, partition, req.URL.String()); lerr == nil {
		cacheHitsTotal.WithLabelValues(string(class), "network_first").Inc()
		return e.response(req), nil
	}
	cacheMissesTotal.WithLabelValues(string(class), "network_first").Inc()
	return nil, err
}

// StaleWhileRevalidate serves the cached entry immediately while a
// background fetch silently replaces it for next time. With nothing cached
// it waits on the network. Used for versioned build assets and
// stylesheets/scripts, where a brief staleness window is harmless.
func (m *Manager) StaleWhileRevalidate(ctx context.Context, req *http.Request, class Class) (*http.Response, error) {
	if e, err := m.lookup(ctx, m.Partition(class), req.URL.String()); err == nil {
		cacheHitsTotal.WithLabelValues(string(class), "stale_while_revalidate").Inc()

		bg := req.Clone(context.WithoutCancel(ctx))
		m.revalidations.Add(1)
		go func() {
			defer m.revalidations.Done()
			m.revalidate(bg, class)
		}()

		return e.response(req), nil
	}
	cacheMissesTotal.WithLabelValues(string(class), "stale_while_revalidate").Inc()
	return m.fetchAndStore(ctx, req, class)
}

// Wait blocks until in-flight background revalidations settle. Called on
// shutdown; tests use it to observe the silent replacement.
func (m *Manager) Wait() {
	m.revalidations.Wait()
}

// Refresh re-fetches url bypassing intermediate caches and overwrites the
// partition entry. Unlike the strategies it reports failure, so callers can
// retry.
func (m *Manager) Refresh(ctx context.Context, rawURL string, class Class) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.fetch.Do(req)
	if err != nil {
		return err
	}
	snap, err := snapshot(resp)
	if err != nil {
		return err
	}
	if !cacheable(req, snap) {
		return fmt.Errorf("refresh of %s got status %d", rawURL, snap.status)
	}
	return m.store(ctx, m.Partition(class), req.URL.String(), snap)
}

// Precache fetches and stores each URL concurrently. Failures are
// independently absorbed; precache never fails the caller.
func (m *Manager) Precache(ctx context.Context, urls []string, class Class) {
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				m.log.Warn(ctx, "precache skipped", "url", u, "error", err)
				return
			}
			if _, err := m.fetchAndStore(ctx, req, class); err != nil {
				m.log.Warn(ctx, "precache failed", "url", u, "error", err)
			}
		}(u)
	}
	wg.Wait()
}

// Purge deletes every partition whose name does not carry the current
// version tag. Partitions created under the current tag survive.
func (m *Manager) Purge(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx,
		`DELETE FROM cached_responses WHERE partition NOT IN (?, ?, ?)`,
		m.Partition(ClassStatic), m.Partition(ClassPages), m.Partition(ClassRuntime))
	if err != nil {
		return fmt.Errorf("failed to purge stale partitions: %w", err)
	}
	return nil
}

func (m *Manager) fetchAndStore(ctx context.Context, req *http.Request, class Class) (*http.Response, error) {
	resp, err := m.fetch.Do(req)
	if err != nil {
		return nil, err
	}
	snap, err := snapshot(resp)
	if err != nil {
		return nil, err
	}
	if cacheable(req, snap) {
		m.storeQuiet(ctx, class, req.URL.String(), snap)
	}
	return snap.response(req), nil
}

func (m *Manager) revalidate(req *http.Request, class Class) {
	ctx := req.Context()
	resp, err := m.fetch.Do(req)
	if err != nil {
		m.log.Debug(ctx, "revalidation failed", "url", req.URL.String(), "error", err)
		return
	}
	snap, err := snapshot(resp)
	if err != nil {
		m.log.Debug(ctx, "revalidation failed", "url", req.URL.String(), "error", err)
		return
	}
	if cacheable(req, snap) {
		m.storeQuiet(ctx, class, req.URL.String(), snap)
	}
}

// storeQuiet swallows storage errors: a cache-write failure must never fail
// the fetch that produced the response.
func (m *Manager) storeQuiet(ctx context.Context, class Class, rawURL string, e *entry) {
	if err := m.store(ctx, m.Partition(class), rawURL, e); err != nil {
		m.log.Warn(ctx, "cache write failed", "url", rawURL, "partition", m.Partition(class), "error", err)
		return
	}
	cacheStoresTotal.WithLabelValues(string(class)).Inc()
}
