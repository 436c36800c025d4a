package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

const subscriberBuffer = 16

// MemoryArea is an in-process storage area shared by several views, the
// way tabs of one browser profile share durable storage.
type MemoryArea struct {
	mu    sync.Mutex
	items map[string]string
	subs  map[chan Change]string // channel -> origin of the subscribing view
}

// NewMemoryArea returns an empty area.
func NewMemoryArea() *MemoryArea {
	return &MemoryArea{
		items: make(map[string]string),
		subs:  make(map[chan Change]string),
	}
}

// View returns a new view of the area with its own origin.  Writes through
// one view are announced to subscribers of every other view.
func (a *MemoryArea) View() *MemoryStorage {
	return &MemoryStorage{area: a, origin: uuid.NewString()}
}

// MemoryStorage is one view of a MemoryArea.
type MemoryStorage struct {
	area   *MemoryArea
	origin string
}

var (
	_ Storage  = (*MemoryStorage)(nil)
	_ Batcher  = (*MemoryStorage)(nil)
	_ Notifier = (*MemoryStorage)(nil)
)

func (m *MemoryStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.area.mu.Lock()
	defer m.area.mu.Unlock()
	v, ok := m.area.items[key]
	return v, ok, nil
}

func (m *MemoryStorage) SetItem(ctx context.Context, key, value string) error {
	return m.Apply(ctx, []Op{{Key: key, Value: value}})
}

func (m *MemoryStorage) RemoveItem(ctx context.Context, key string) error {
	return m.Apply(ctx, []Op{{Key: key, Remove: true}})
}

// Apply writes every op under one lock.
func (m *MemoryStorage) Apply(_ context.Context, ops []Op) error {
	a := m.area
	a.mu.Lock()
	defer a.mu.Unlock()
	changes := make([]Change, 0, len(ops))
	for _, op := range ops {
		if op.Remove {
			if _, ok := a.items[op.Key]; !ok {
				continue
			}
			delete(a.items, op.Key)
			changes = append(changes, Change{Key: op.Key, Removed: true})
			continue
		}
		if old, ok := a.items[op.Key]; ok && old == op.Value {
			continue
		}
		a.items[op.Key] = op.Value
		changes = append(changes, Change{Key: op.Key, Value: op.Value})
	}
	for ch, origin := range a.subs {
		if origin == m.origin {
			continue
		}
		for _, c := range changes {
			deliver(ch, c)
		}
	}
	return nil
}

// Subscribe registers this view for changes made through other views.
func (m *MemoryStorage) Subscribe(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, subscriberBuffer)
	a := m.area
	a.mu.Lock()
	a.subs[ch] = m.origin
	a.mu.Unlock()

	go func() {
		<-ctx.Done()
		a.mu.Lock()
		delete(a.subs, ch)
		close(ch)
		a.mu.Unlock()
	}()
	return ch, nil
}
