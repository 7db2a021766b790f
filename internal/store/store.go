// Package store is the persistence boundary for thesis documents. A Store
// keeps one document per key and replaces the whole document on save; legacy
// payloads are migrated on the way out of storage, never on the way in.
package store

import (
	"context"
	"errors"

	"github.com/scribe-labs/scribe/internal/thesis"
)

// ErrNotFound is returned by Load when no document exists for the key.
var ErrNotFound = errors.New("document not found")

// Store persists thesis documents keyed by an opaque owner key.
type Store interface {
	// Load fetches and decodes the document for a key. Stored payloads in
	// the legacy chapter shape come back already migrated.
	Load(ctx context.Context, key string) (thesis.Document, error)

	// Save replaces the stored document for a key.
	Save(ctx context.Context, key string, doc thesis.Document) error

	// Delete removes the stored document for a key. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key with a stored document.
	Keys(ctx context.Context) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
