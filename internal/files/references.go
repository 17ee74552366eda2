package files

import (
	"context"
	"sync"

	"github.com/sitework/sitework/internal/apperr"
)

// KeySource yields object keys referenced by some other store.
type KeySource func(ctx context.Context) ([]string, error)

// MemoryReferences keeps explicit references in memory and merges in keys
// from the configured sources. It satisfies both ReferenceStore and the
// cleanup reference checker.
type MemoryReferences struct {
	mu      sync.RWMutex
	refs    map[string]Reference
	sources []KeySource
	docs    DocumentChecker
}

func NewMemoryReferences(sources ...KeySource) *MemoryReferences {
	return &MemoryReferences{refs: map[string]Reference{}, sources: sources}
}

// WithDocuments drops explicit references whose document no longer exists.
func (m *MemoryReferences) WithDocuments(d DocumentChecker) *MemoryReferences {
	m.docs = d
	return m
}

func (m *MemoryReferences) Add(_ context.Context, ref Reference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref.Bucket+"/"+ref.Key] = ref
	return nil
}

func (m *MemoryReferences) ReferencedKeys(ctx context.Context) (map[string]bool, error) {
	m.mu.RLock()
	refs := make([]Reference, 0, len(m.refs))
	for _, r := range m.refs {
		refs = append(refs, r)
	}
	m.mu.RUnlock()

	out := map[string]bool{}
	for _, r := range refs {
		if m.docs != nil {
			err := m.docs.DocumentExists(ctx, r.DocumentType, r.DocumentID)
			if apperr.Is(err, apperr.KindNotFound) || apperr.Is(err, apperr.KindValidation) {
				continue
			}
			if err != nil {
				return nil, err
			}
		}
		out[r.Key] = true
	}
	for _, src := range m.sources {
		keys, err := src(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if k != "" {
				out[k] = true
			}
		}
	}
	return out, nil
}
