// Package store keeps one partial aggregate per chunk index so that map
// workers do not need to stay resident until the combine phase.
package store

import (
	"context"
	"sync"

	"github.com/emptyOVO/txagg/agg"
)

// Store associates one partial aggregate with one chunk index.
//
// Get returns ok=false when nothing was stored for index; callers treat that
// exactly like an empty aggregate.
type Store interface {
	Put(ctx context.Context, index uint32, a *agg.Aggregate) error
	Get(ctx context.Context, index uint32) (a *agg.Aggregate, ok bool, err error)
	Has(ctx context.Context, index uint32) (bool, error)
}

// MemStore is an in-process Store. Values are encoded on Put so a later
// mutation of the caller's aggregate is not visible through Get.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[uint32][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[uint32][]byte)}
}

func (m *MemStore) Put(ctx context.Context, index uint32, a *agg.Aggregate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	blob := Encode(a)
	m.mu.Lock()
	m.blobs[index] = blob
	m.mu.Unlock()
	return nil
}

func (m *MemStore) Get(ctx context.Context, index uint32) (*agg.Aggregate, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	blob, ok := m.blobs[index]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	a, err := Decode(blob)
	if err != nil {
		return nil, false, err
	}
	return a, true, nil
}

func (m *MemStore) Has(ctx context.Context, index uint32) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[index]
	return ok, nil
}

// Len is the number of stored partials.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
