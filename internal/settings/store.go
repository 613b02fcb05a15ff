// Package settings persists the relay's single settings record as a
// key-value map. The OAuth2 token store and the mail configurator both
// read and write through this boundary; secrets are encrypted by their
// callers before they arrive here.
package settings

import "context"

// Store is the persistence boundary for the settings record.
//
// Save has merge semantics: only the given fields are written, everything
// else in the record is left untouched. Clear removes exactly the named
// keys. Both must be atomic with respect to concurrent callers.
type Store interface {
	// Load returns the full settings record, empty map if nothing stored
	Load(ctx context.Context) (map[string]string, error)
	// Get returns one field's value, "" if absent
	Get(ctx context.Context, key string) (string, error)
	// Save merges the given fields into the record
	Save(ctx context.Context, fields map[string]string) error
	// Clear removes the named keys, leaving other settings untouched
	Clear(ctx context.Context, keys ...string) error
	// Close releases the underlying resources
	Close() error
}
