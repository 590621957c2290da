// Package store persists route configuration: the mapping from an inbound
// webhook path to the RouteConfig the router resolves on every call.
//
// The package includes a Redis-backed implementation for production, a
// BadgerDB-backed implementation for single-node deployments without an
// external store, and an in-memory implementation for testing. All
// implementations are safe for concurrent readers and writers; Put is
// last-write-wins per key.
package store

import (
	"context"
	"errors"

	"callbridge/models"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when no route is configured for a key.
	ErrNotFound = errors.New("store: route not found")

	// ErrUnavailable wraps transient backend failures. Callers may retry;
	// the router does so with bounded backoff before rejecting a call.
	ErrUnavailable = errors.New("store: unavailable")
)

// ConfigStore is the route configuration capability. Keys are inbound
// webhook paths (or numbers); values are full RouteConfig records.
// Both operations are idempotent.
type ConfigStore interface {
	// Get retrieves the route for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key string) (models.RouteConfig, error)

	// Put stores a route under a key, overwriting any existing record.
	Put(ctx context.Context, key string, cfg models.RouteConfig) error

	// Close releases any resources held by the store.
	Close() error
}
