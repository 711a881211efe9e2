// Package dedupe tracks ledger identity keys so a submission is stored at most once.
package dedupe

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	model "github.com/okian/taikai/internal/domain/model"
)

// Deduper records seen identity keys to ensure at-most-once ledger appends.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key, allowing it to be retried.
	// Only used when a key was recorded but the append it guarded failed to persist.
	Unrecord(ctx context.Context, key string)

	// Reset discards every recorded key and records keys instead.
	Reset(ctx context.Context, keys []string)

	Size() int64
}

// Key returns the identity key of a score record: event, team, classCode and name.
// Absent optional fields encode as null so they never collide with an empty string.
func Key(r model.ScoreRecord) string {
	// Marshalling strings and nil pointers cannot fail.
	b, _ := json.Marshal([4]any{r.Event, r.Team, r.ClassCode, r.Name})
	return string(b)
}

// Keys returns the identity key of every record, in order.
func Keys(records []model.ScoreRecord) []string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = Key(r)
	}
	return keys
}

// inMemoryDeduper implements Deduper with a plain set.
// It never evicts; forgetting a key would let the same submission be appended twice.
type inMemoryDeduper struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	initialSize int
	size        atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.initialSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Reset(_ context.Context, keys []string) {
	seen := make(map[string]struct{}, max(len(keys), d.initialSize))
	for _, k := range keys {
		seen[k] = struct{}{}
	}

	d.mu.Lock()
	d.seen = seen
	d.size.Store(int64(len(seen)))
	d.mu.Unlock()
}

// Size returns the current number of distinct keys.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
