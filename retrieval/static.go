package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hupe1980/agentcrew/core"
)

// StaticIndex is a naive process-local core.Retriever. Passages are grouped
// by collection and matched with case-insensitive substring search over the
// whole query, every hit scoring a constant 1.0. Results come back in
// insertion order. Suitable only for tests and demos; use ChromemIndex for
// semantic retrieval.
type StaticIndex struct {
	mu          sync.RWMutex
	collections map[string][]core.Passage
}

// NewStaticIndex creates an empty index.
func NewStaticIndex() *StaticIndex {
	return &StaticIndex{
		collections: make(map[string][]core.Passage),
	}
}

// Add appends a passage to a collection, generating a simple incremental id.
func (s *StaticIndex) Add(collection, content string, metadata map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("pass_%d", len(s.collections[collection]))
	s.collections[collection] = append(s.collections[collection], core.Passage{
		ID:       id,
		Content:  content,
		Score:    1.0,
		Metadata: metadata,
	})
}

// Query implements core.Retriever. An empty query matches everything.
func (s *StaticIndex) Query(ctx context.Context, collection, query string, k int) ([]core.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = core.DefaultTopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	results := make([]core.Passage, 0, k)
	for _, p := range s.collections[collection] {
		if len(results) >= k {
			break
		}
		if needle == "" || strings.Contains(strings.ToLower(p.Content), needle) {
			results = append(results, p)
		}
	}
	return results, nil
}
