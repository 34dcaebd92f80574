// Package push turns inbound push events into displayed notifications and
// keeps the push subscription alive across platform-initiated rotations.
// Nothing in this package throws past the push boundary: malformed input
// degrades to a generic notification, never a dropped event.
package push

import (
	"encoding/json"
	"math"
)

// DefaultTitle is used when the payload carries none.
const DefaultTitle = "Duet"

// Notification is a display-ready notification. Data always carries the
// click target under "url"; Options holds the optional presentation fields
// that were present and well-typed in the payload, verbatim.
type Notification struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Data    map[string]any `json:"data"`
	Options map[string]any `json:"options,omitempty"`
}

// DecodePayload parses a push event body. A body that is not a JSON object
// becomes a notification with the raw text as body and all defaults. The
// function never fails.
func DecodePayload(raw []byte) Notification {
	n := Notification{
		Title: DefaultTitle,
		Data:  map[string]any{"url": "/"},
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		n.Body = string(raw)
		return n
	}

	if s, ok := m["title"].(string); ok && s != "" {
		n.Title = s
	}
	if s, ok := m["body"].(string); ok {
		n.Body = s
	}

	targetURL := "/"
	if s, ok := m["url"].(string); ok && s != "" {
		targetURL = s
	}

	// Payload-provided custom data is merged with the resolved url; the
	// url key wins so click handling always has a target.
	if d, ok := m["data"].(map[string]any); ok {
		for k, v := range d {
			n.Data[k] = v
		}
	}
	n.Data["url"] = targetURL

	opts := map[string]any{}
	for _, key := range []string{"icon", "badge", "tag"} {
		if s, ok := m[key].(string); ok {
			opts[key] = s
		}
	}
	for _, key := range []string{"renotify", "silent", "requireInteraction"} {
		if b, ok := m[key].(bool); ok {
			opts[key] = b
		}
	}
	if ts, ok := m["timestamp"].(float64); ok && ts > 0 && !math.IsInf(ts, 0) && !math.IsNaN(ts) {
		opts["timestamp"] = ts
	}
	if actions, ok := m["actions"].([]any); ok {
		opts["actions"] = actions
	}
	if len(opts) > 0 {
		n.Options = opts
	}

	return n
}

// TargetURL resolves the click target stored with the notification.
func (n Notification) TargetURL() string {
	if s, ok := n.Data["url"].(string); ok && s != "" {
		return s
	}
	return "/"
}
