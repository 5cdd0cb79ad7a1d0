package retrieval

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/hupe1980/agentcrew/core"
	"github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ core.Retriever = (*ChromemIndex)(nil)
	_ core.Retriever = (*StaticIndex)(nil)
)

// bagOfWords is a deterministic offline embedding: a normalized hashed
// word-count histogram. Identical texts embed identically, so exact-match
// queries rank first.
func bagOfWords(dims int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		v := make([]float32, dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			h := fnv.New32a()
			h.Write([]byte(word))
			v[int(h.Sum32())%dims]++
		}
		var sum float64
		for _, x := range v {
			sum += float64(x * x)
		}
		if sum == 0 {
			v[0] = 1
			sum = 1
		}
		norm := float32(math.Sqrt(sum))
		for i := range v {
			v[i] /= norm
		}
		return v, nil
	}
}

func newTestIndex(t *testing.T, optFns ...func(o *ChromemOptions)) *ChromemIndex {
	t.Helper()
	idx, err := NewChromemIndex(append(optFns, WithEmbedding(bagOfWords(32)))...)
	require.NoError(t, err)
	return idx
}

func TestChromemIndex_IngestAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Ingest(ctx, "facts", []Document{
		{ID: "a", Content: "alpha beta gamma"},
		{ID: "b", Content: "delta epsilon"},
		{ID: "c", Content: "zeta eta theta iota"},
	}))

	passages, err := idx.Query(ctx, "facts", "alpha beta gamma", 2)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Equal(t, "a", passages[0].ID)
	assert.Equal(t, "alpha beta gamma", passages[0].Content)
	assert.InDelta(t, 1.0, passages[0].Score, 1e-4)
}

func TestChromemIndex_ClampsToCollectionSize(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Ingest(ctx, "facts", []Document{
		{Content: "alpha"},
		{Content: "beta"},
	}))

	// Asking for more results than documents must not error.
	passages, err := idx.Query(ctx, "facts", "alpha", 10)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
}

func TestChromemIndex_EmptyCollection(t *testing.T) {
	idx := newTestIndex(t)
	passages, err := idx.Query(context.Background(), "void", "anything", 4)
	require.NoError(t, err)
	assert.Empty(t, passages)
}

func TestChromemIndex_GeneratesDocumentIDs(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Ingest(ctx, "facts", []Document{{Content: "alpha"}}))

	passages, err := idx.Query(ctx, "facts", "alpha", 1)
	require.NoError(t, err)
	require.Len(t, passages, 1)
	assert.NotEmpty(t, passages[0].ID)
}

func TestChromemIndex_CollectionLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Ingest(ctx, "papers", []Document{{Content: "alpha"}}))
	require.NoError(t, idx.Ingest(ctx, "notes", []Document{{Content: "beta"}}))
	assert.Equal(t, []string{"notes", "papers"}, idx.Collections())

	require.NoError(t, idx.DeleteCollection("papers"))
	assert.Equal(t, []string{"notes"}, idx.Collections())
}

func TestChromemIndex_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx := newTestIndex(t, WithPath(dir))
	require.NoError(t, idx.Ingest(ctx, "facts", []Document{
		{ID: "a", Content: "alpha beta"},
		{ID: "b", Content: "gamma delta"},
	}))

	reopened := newTestIndex(t, WithPath(dir))
	passages, err := reopened.Query(ctx, "facts", "alpha beta", 10)
	require.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, "a", passages[0].ID)
}
