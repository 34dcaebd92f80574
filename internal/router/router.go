// Package router classifies intercepted requests by URL shape and method
// and dispatches them to the cache manager with the right partition and
// strategy. Anything it declines to intervene on passes through untouched.
package router

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/duetapp/duet/internal/cache"
)

// Strategy selects one of the cache manager's resolution strategies.
type Strategy string

const (
	StrategyCacheFirst           Strategy = "cache_first"
	StrategyNetworkFirst         Strategy = "network_first"
	StrategyStaleWhileRevalidate Strategy = "stale_while_revalidate"
)

// Routes is the allow-list of navigable application routes served
// network-first from the pages partition.
var Routes = []string{"/", "/home", "/list", "/notes", "/login", "/calendar"}

// assetsPrefix is the build system's versioned static-asset path. Anything
// under it is fingerprinted, so stale-then-refresh is safe.
const assetsPrefix = "/assets/"

var binaryExts = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".webp": {},
	".svg": {}, ".ico": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
}

// scriptExts can legitimately change between deployments, so they get
// stale-while-revalidate instead of cache-first.
var scriptExts = map[string]struct{}{
	".css": {}, ".js": {},
}

// Decision is where and how an intervened request is served.
type Decision struct {
	Class    cache.Class
	Strategy Strategy
}

// Router applies the classification rules for one application origin.
type Router struct {
	origin *url.URL
}

func New(appOrigin string) (*Router, error) {
	u, err := url.Parse(appOrigin)
	if err != nil {
		return nil, err
	}
	return &Router{origin: u}, nil
}

// Classify decides whether to intervene on req and, if so, with which
// partition and strategy. Rules apply in priority order; the first match
// wins.
func (r *Router) Classify(req *http.Request) (Decision, bool) {
	if req.Method != http.MethodGet || !r.sameOrigin(req.URL) {
		return Decision{}, false
	}

	p := req.URL.Path

	if strings.HasPrefix(p, assetsPrefix) {
		return Decision{Class: cache.ClassStatic, Strategy: StrategyStaleWhileRevalidate}, true
	}

	ext := strings.ToLower(path.Ext(p))
	if _, ok := scriptExts[ext]; ok {
		return Decision{Class: cache.ClassStatic, Strategy: StrategyStaleWhileRevalidate}, true
	}
	if _, ok := binaryExts[ext]; ok {
		return Decision{Class: cache.ClassStatic, Strategy: StrategyCacheFirst}, true
	}

	if isNavigation(req) && isAllowedRoute(p) {
		return Decision{Class: cache.ClassPages, Strategy: StrategyNetworkFirst}, true
	}

	return Decision{Class: cache.ClassRuntime, Strategy: StrategyNetworkFirst}, true
}

func (r *Router) sameOrigin(u *url.URL) bool {
	if u.Host == "" {
		// Relative request URL, can only be ours.
		return true
	}
	return u.Host == r.origin.Host && (u.Scheme == "" || u.Scheme == r.origin.Scheme)
}

// isNavigation mirrors the browser's mode==navigate: user agents mark
// top-level navigations with Sec-Fetch-Mode.
func isNavigation(req *http.Request) bool {
	return req.Header.Get("Sec-Fetch-Mode") == "navigate"
}

func isAllowedRoute(p string) bool {
	trimmed := strings.TrimSuffix(p, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	for _, route := range Routes {
		if p == route || trimmed == route {
			return true
		}
	}
	return false
}

// Transport is an http.RoundTripper serving classified requests through the
// cache manager and passing everything else to the base transport.
type Transport struct {
	router *Router
	cache  *cache.Manager
	base   http.RoundTripper
}

func NewTransport(router *Router, manager *cache.Manager, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{router: router, cache: manager, base: base}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	d, ok := t.router.Classify(req)
	if !ok {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	switch d.Strategy {
	case StrategyCacheFirst:
		return t.cache.CacheFirst(ctx, req, d.Class)
	case StrategyStaleWhileRevalidate:
		return t.cache.StaleWhileRevalidate(ctx, req, d.Class)
	default:
		return t.cache.NetworkFirst(ctx, req, d.Class)
	}
}
