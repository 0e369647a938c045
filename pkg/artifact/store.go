// Package artifact abstracts the store that holds derived images, keyed by
// fingerprint-derived names. Artifacts are immutable once written: a key
// collision implies content identity, so writers only ever create or
// overwrite with identical bytes, never mutate in place.
package artifact

import "context"

// Store is the persistence contract the cache relies on.
type Store interface {
	// Exists reports whether an artifact is present at the key.
	Exists(ctx context.Context, key string) (bool, error)
	// Read returns the artifact bytes at the key.
	Read(ctx context.Context, key string) ([]byte, error)
	// Write persists the bytes at the key. Write must be atomic from a
	// reader's perspective: concurrent readers never observe a partial
	// artifact.
	Write(ctx context.Context, key string, data []byte) error
}
