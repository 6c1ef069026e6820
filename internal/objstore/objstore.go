// Package objstore is the binary-object storage boundary: put a blob under a
// key, remove a batch of keys. Media bytes and room teardown are the only
// callers.
package objstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, keys []string) error
}

// Memory is the in-process implementation used by the memory store type and
// the tests.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Put(ctx context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Remove(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.objects, key)
	}
	return nil
}

// KeysWithPrefix lists stored keys under a prefix, sorted.
func (m *Memory) KeysWithPrefix(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
