// Package memory implements an in-memory blob store for tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/miilabs/auction-harvester/internal/storage"
)

// BlobStore keeps objects in a map guarded by a mutex.
type BlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// FailPuts makes every PutObject fail, for persistence-failure tests.
	FailPuts bool
}

// New returns an empty in-memory store.
func New() *BlobStore {
	return &BlobStore{objects: make(map[string][]byte)}
}

// GetObject returns a copy of the stored bytes.
func (s *BlobStore) GetObject(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return append([]byte(nil), data...), nil
}

// PutObject stores a copy of data under key.
func (s *BlobStore) PutObject(_ context.Context, key string, _ string, data []byte) error {
	if s.FailPuts {
		return errPutFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

// CopyObject duplicates src under dst.
func (s *BlobStore) CopyObject(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[src]
	if !ok {
		return storage.ErrNotExist
	}
	s.objects[dst] = append([]byte(nil), data...)
	return nil
}

// DeleteObject removes key; missing keys are ignored.
func (s *BlobStore) DeleteObject(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// ListObjects returns the keys under prefix in lexical order.
func (s *BlobStore) ListObjects(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

var errPutFailed = putError("put failed")

type putError string

func (e putError) Error() string { return string(e) }
