// Package message defines the closed set of structured messages exchanged
// between the worker and foreground clients. Every message kind is a case
// of one tagged union; an unrecognized type is a decode error, never a
// silently ignored branch.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/duetapp/duet/internal/common"
)

// Type tags one message kind.
type Type string

const (
	// Foreground -> worker.
	TypeSkipWaiting   Type = "SKIP_WAITING"   // activate the waiting worker immediately
	TypeOfflinePut    Type = "OFFLINE_PUT"    // write Value into collection Store
	TypeOfflineGetAll Type = "OFFLINE_GET_ALL" // request all records in Store
	TypeRefreshRoutes Type = "REFRESH_ROUTES" // re-fetch and re-cache allow-listed routes

	// Worker -> foreground.
	TypeOfflineResult       Type = "OFFLINE_RESULT"       // reply to OFFLINE_GET_ALL
	TypeFlushOutbox         Type = "FLUSH_OUTBOX"         // run the foreground outbox flush
	TypeRefreshDone         Type = "REFRESH_DONE"         // route refresh completed
	TypeNotify              Type = "NOTIFY"               // display a push notification
	TypeSubscriptionRenewed Type = "SUBSCRIPTION_RENEWED" // rotation outcome
)

// knownTypes is the exhaustive set; Decode checks membership.
var knownTypes = map[Type]struct{}{
	TypeSkipWaiting:         {},
	TypeOfflinePut:          {},
	TypeOfflineGetAll:       {},
	TypeRefreshRoutes:       {},
	TypeOfflineResult:       {},
	TypeFlushOutbox:         {},
	TypeRefreshDone:         {},
	TypeNotify:              {},
	TypeSubscriptionRenewed: {},
}

// stringForm messages may travel as a bare JSON string for compatibility
// with clients that send "SKIP_WAITING" rather than an object.
var stringForm = map[Type]struct{}{
	TypeSkipWaiting:   {},
	TypeRefreshRoutes: {},
	TypeFlushOutbox:   {},
	TypeRefreshDone:   {},
}

// Message is the tagged union. Which fields are meaningful depends on Type:
//
//	OFFLINE_PUT:           Store, Value (one record)
//	OFFLINE_GET_ALL:       Store
//	OFFLINE_RESULT:        Store, Items
//	NOTIFY:                Notification
//	SUBSCRIPTION_RENEWED:  OK
//
// The remaining kinds carry no payload.
type Message struct {
	Type         Type            `json:"type"`
	Store        string          `json:"store,omitempty"`
	Value        json.RawMessage `json:"value,omitempty"`
	Items        json.RawMessage `json:"items,omitempty"`
	Notification json.RawMessage `json:"notification,omitempty"`
	OK           *bool           `json:"ok,omitempty"`
}

// Encode marshals m. Payload-free kinds in the string form set go out as a
// bare JSON string.
func Encode(m Message) ([]byte, error) {
	if _, ok := knownTypes[m.Type]; !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownMessage, m.Type)
	}
	if _, ok := stringForm[m.Type]; ok && m.Store == "" && m.Value == nil && m.Items == nil {
		return json.Marshal(string(m.Type))
	}
	return json.Marshal(m)
}

// Decode parses data as either a bare string or an object form message.
// Unknown types are rejected with common.ErrUnknownMessage.
func Decode(data []byte) (Message, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t := Type(s)
		if _, ok := knownTypes[t]; !ok {
			return Message{}, fmt.Errorf("%w: %q", common.ErrUnknownMessage, s)
		}
		return Message{Type: t}, nil
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("malformed message: %w", err)
	}
	if _, ok := knownTypes[m.Type]; !ok {
		return Message{}, fmt.Errorf("%w: %q", common.ErrUnknownMessage, m.Type)
	}
	return m, nil
}
