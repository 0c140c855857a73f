package store

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// Memory is an in-memory implementation of Store using a map with mutex
// protection.
//
// WARNING: Memory is NOT suitable for multi-instance deployments. Each
// instance keeps its own counters, so the effective quota is multiplied by
// the instance count. Use the Redis store when quota state must be shared;
// Memory exists as the single-instance backend and as the per-call fallback
// target when Redis is unreachable.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	stopCh  chan struct{}
}

// NewMemory creates a new in-memory store. A background goroutine sweeps
// expired entries every minute to prevent unbounded growth; foreground calls
// also treat expired entries as absent, so the sweep is purely reclamation.
//
// Call Close when done to stop the sweep goroutine.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}

	go m.sweep()
	return m
}

func (m *Memory) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	entry, exists := m.entries[key]

	if !exists || now.After(entry.expiresAt) {
		m.entries[key] = &memoryEntry{
			count:     1,
			expiresAt: now.Add(ttl),
		}
		return 1, nil
	}

	entry.count++
	return entry.count, nil
}

func (m *Memory) Decrement(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return 0, nil
	}

	if entry.count > 0 {
		entry.count--
	}
	return entry.count, nil
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists || time.Now().After(entry.expiresAt) {
		return 0, nil
	}

	return entry.count, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

// Len returns the number of live (non-expired) entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := time.Now()
	n := 0
	for _, entry := range m.entries {
		if !now.After(entry.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the sweep goroutine. Safe to call more than once.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-m.stopCh:
	default:
		close(m.stopCh)
	}
	return nil
}

func (m *Memory) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			var expiredKeys []string

			m.mu.RLock()
			for key, entry := range m.entries {
				if now.After(entry.expiresAt) {
					expiredKeys = append(expiredKeys, key)
				}
			}
			m.mu.RUnlock()

			if len(expiredKeys) > 0 {
				m.mu.Lock()
				for _, key := range expiredKeys {
					// Re-check: the key may have been recreated between locks.
					if entry, ok := m.entries[key]; ok && now.After(entry.expiresAt) {
						delete(m.entries, key)
					}
				}
				m.mu.Unlock()
			}
		case <-m.stopCh:
			return
		}
	}
}
