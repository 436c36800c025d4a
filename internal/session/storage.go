package session

import "context"

// Storage is a client-only string key-value area, the server-side
// equivalent of a browser's durable storage.  Implementations must be safe
// for concurrent use.
type Storage interface {
	// GetItem returns the value and whether the key exists.
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	// RemoveItem deletes key; removing a missing key is not an error.
	RemoveItem(ctx context.Context, key string) error
}

// Op is one write in a batch.  Remove deletes Key and ignores Value.
type Op struct {
	Key    string
	Value  string
	Remove bool
}

// Batcher is implemented by storages that can apply several writes so that
// no reader observes a subset of them.
type Batcher interface {
	Apply(ctx context.Context, ops []Op) error
}

// Change describes a write made through another view of the same area.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// Notifier is implemented by storages shared between several contexts.
// Subscribe delivers changes made by other views only; the channel closes
// when ctx is done.  Deliveries are triggers, not a log: when a reader falls
// behind, the oldest pending change is dropped to make room, so the latest
// write is always delivered and re-reading the storage on each event
// converges.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// deliver sends c without blocking.  A full channel loses its oldest
// pending change instead of c.  Callers must be the channel's only sender.
func deliver(ch chan Change, c Change) {
	for {
		select {
		case ch <- c:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
