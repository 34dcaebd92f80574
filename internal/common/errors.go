// Package common defines shared constants and sentinel errors used across
// the Duet worker components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound        = errors.New("not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrCacheMiss         = errors.New("cache miss")

	// Connectivity / replay errors.
	ErrOffline         = errors.New("offline")
	ErrUnknownKind     = errors.New("unknown outbox kind")
	ErrSyncUnsupported = errors.New("background sync unsupported")

	// Messaging errors.
	ErrUnknownMessage = errors.New("unknown message type")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")
)
