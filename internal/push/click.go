package push

import (
	"context"
	"strings"
)

// ForegroundClient is one open application client (a tab, in browser
// terms).
type ForegroundClient interface {
	URL() string
	Focus(ctx context.Context) error
	Navigate(ctx context.Context, url string) error
}

// ClientRegistry enumerates open clients and can open a new one.
type ClientRegistry interface {
	List(ctx context.Context) ([]ForegroundClient, error)
	OpenWindow(ctx context.Context, url string) error
}

// HandleClick routes a notification click: focus an open client already at
// the target (navigating it first when allowed), or open a new one. The
// dismiss callback runs regardless of outcome.
func HandleClick(ctx context.Context, reg ClientRegistry, n Notification, dismiss func()) error {
	if dismiss != nil {
		defer dismiss()
	}

	target := n.TargetURL()

	clients, err := reg.List(ctx)
	if err != nil {
		return reg.OpenWindow(ctx, target)
	}

	for _, c := range clients {
		if !sameTarget(c.URL(), target) {
			continue
		}
		// Navigation can be refused for out-of-scope pages; focusing
		// still works then.
		_ = c.Navigate(ctx, target)
		return c.Focus(ctx)
	}

	return reg.OpenWindow(ctx, target)
}

// sameTarget compares URLs exactly, insensitive to a trailing slash.
func sameTarget(a, b string) bool {
	if a == b {
		return true
	}
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
