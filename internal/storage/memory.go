package storage

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sitework/sitework/internal/apperr"
)

type memObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryStore keeps objects in process memory. Used in tests and when MinIO is
// not configured.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memObject
	now     func() time.Time
	// ListErr makes List fail for the named bucket.
	ListErr map[string]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: map[string]map[string]*memObject{}, now: time.Now, ListErr: map[string]error{}}
}

func (m *MemoryStore) Put(_ context.Context, bucket, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string]*memObject{}
	}
	m.buckets[bucket][key] = &memObject{data: data, contentType: contentType, modified: m.now()}
	return nil
}

// PutAt stores an object with an explicit modification time.
func (m *MemoryStore) PutAt(bucket, key string, data []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.buckets[bucket] == nil {
		m.buckets[bucket] = map[string]*memObject{}
	}
	m.buckets[bucket][key] = &memObject{data: data, modified: modified}
}

func (m *MemoryStore) PresignGet(_ context.Context, bucket, key string, expires time.Duration) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.buckets[bucket][key]; !ok {
		return "", apperr.NotFound("file")
	}
	return fmt.Sprintf("memory://%s/%s?expires=%d", bucket, key, int(expires.Seconds())), nil
}

func (m *MemoryStore) List(_ context.Context, bucket string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.ListErr[bucket]; err != nil {
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(m.buckets[bucket]))
	for k, o := range m.buckets[bucket] {
		out = append(out, ObjectInfo{Key: k, Size: int64(len(o.data)), LastModified: o.modified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *MemoryStore) Remove(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets[bucket], key)
	return nil
}

// Has reports whether key exists in bucket.
func (m *MemoryStore) Has(bucket, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.buckets[bucket][key]
	return ok
}
