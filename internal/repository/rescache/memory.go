// Package rescache caches RetrieveResults under SearchRequest.CacheKey keys, in
// process memory or in a shared Redis/Valkey store.
package rescache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/rhokp/internal/domain"
)

type memEntry struct {
	key      string
	value    domain.RetrieveResult
	storedAt time.Time
}

// Memory is a per-client in-memory cache. Expired entries are dropped lazily
// on read; when full, the oldest insertion is evicted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion

	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory(ttl time.Duration, maxEntries int) *Memory {
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// WithClock replaces the time source (tests).
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

// Get returns a deep copy of a live entry.
func (m *Memory) Get(_ context.Context, key string) (domain.RetrieveResult, bool, error) {
	m.mu.RLock()
	el, ok := m.entries[key]
	if !ok {
		m.mu.RUnlock()
		return domain.RetrieveResult{}, false, nil
	}
	e := el.Value.(*memEntry)
	if m.now().Sub(e.storedAt) < m.ttl {
		res := e.value.Clone()
		m.mu.RUnlock()
		return res, true, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check: a concurrent Set may have refreshed the entry.
	if el, ok := m.entries[key]; ok {
		e := el.Value.(*memEntry)
		if m.now().Sub(e.storedAt) < m.ttl {
			return e.value.Clone(), true, nil
		}
		m.order.Remove(el)
		delete(m.entries, key)
	}
	return domain.RetrieveResult{}, false, nil
}

// Set stores a deep copy of res.
func (m *Memory) Set(_ context.Context, key string, res domain.RetrieveResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := &memEntry{key: key, value: res.Clone(), storedAt: m.now()}
	if el, ok := m.entries[key]; ok {
		el.Value = entry
		m.order.MoveToBack(el)
		return nil
	}
	for m.maxEntries > 0 && m.order.Len() >= m.maxEntries {
		oldest := m.order.Front()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memEntry).key)
	}
	m.entries[key] = m.order.PushBack(entry)
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order.Len()
}

// Clear drops every entry.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*list.Element)
	m.order.Init()
}
