// Package repository keeps the shared documents of the service and their committed state.
//
// Each document is cached after its first load. Writes encode the new value,
// persist it through the backend and only then replace the cached copy, so a
// failed write leaves both the backend and the cache at the previous state.
// Callers serialize writes per document; reads may run concurrently.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/taikai/internal/adapters/storage"
)

// Document keys.
const (
	TeamsKey       = "teams"
	MuscleMaxKey   = "musclemax"
	CosplayKey     = "cosplay"
	EventScoresKey = "eventscores"
)

// Document is a typed, cached view over one backend key.
type Document[T any] struct {
	backend storage.Backend
	key     string
	empty   func() T
	clone   func(T) T

	mu     sync.RWMutex
	loaded bool
	value  T
}

// NewDocument returns a document for key. empty supplies the value used when
// the key has never been written; clone isolates callers from the cache.
func NewDocument[T any](b storage.Backend, key string, empty func() T, clone func(T) T) *Document[T] {
	return &Document[T]{backend: b, key: key, empty: empty, clone: clone}
}

// Key returns the backend key.
func (d *Document[T]) Key() string { return d.key }

// Load (re)reads the document from the backend.
func (d *Document[T]) Load(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked(ctx)
}

func (d *Document[T]) loadLocked(ctx context.Context) error {
	data, err := d.backend.Load(ctx, d.key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		d.value = d.empty()
	case err != nil:
		return fmt.Errorf("%w: load %s: %v", ErrStorageUnavailable, d.key, err)
	default:
		v := d.empty()
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrCorruptDocument, d.key, err)
		}
		d.value = d.clone(v)
	}
	d.loaded = true
	return nil
}

// Read returns a copy of the committed value, loading it on first use.
func (d *Document[T]) Read(ctx context.Context) (T, error) {
	d.mu.RLock()
	if d.loaded {
		v := d.clone(d.value)
		d.mu.RUnlock()
		return v, nil
	}
	d.mu.RUnlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		if err := d.loadLocked(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return d.clone(d.value), nil
}

// Write persists v and makes it the committed value.
func (d *Document[T]) Write(ctx context.Context, v T) error {
	v = d.clone(v)
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", d.key, err)
	}
	if err := d.backend.Save(ctx, d.key, data); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrStorageUnavailable, d.key, err)
	}

	d.mu.Lock()
	d.value = v
	d.loaded = true
	d.mu.Unlock()
	return nil
}
