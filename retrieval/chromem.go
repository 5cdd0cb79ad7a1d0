package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/philippgille/chromem-go"
)

// Document is a unit of ingestable content. An empty ID is replaced with a
// generated one.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// ChromemOptions configures the embedded vector index.
type ChromemOptions struct {
	// Path is the on-disk location of the index. Empty keeps the index in
	// memory only.
	Path string
	// Compress gzips persisted segments. Only meaningful with Path set.
	Compress bool
	// Embedding converts text into vectors. Nil falls back to chromem's
	// default (OpenAI, key from OPENAI_API_KEY).
	Embedding chromem.EmbeddingFunc
	// Logger receives ingestion diagnostics.
	Logger logging.Logger
}

// WithPath persists the index under the given directory.
func WithPath(path string) func(o *ChromemOptions) {
	return func(o *ChromemOptions) {
		o.Path = path
	}
}

// WithOllamaEmbeddings embeds through a local Ollama instance.
func WithOllamaEmbeddings(model string) func(o *ChromemOptions) {
	return func(o *ChromemOptions) {
		o.Embedding = chromem.NewEmbeddingFuncOllama(model, "")
	}
}

// WithOpenAIEmbeddings embeds through the OpenAI embeddings API.
func WithOpenAIEmbeddings(apiKey string) func(o *ChromemOptions) {
	return func(o *ChromemOptions) {
		o.Embedding = chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
	}
}

// WithEmbedding supplies a custom embedding function.
func WithEmbedding(fn chromem.EmbeddingFunc) func(o *ChromemOptions) {
	return func(o *ChromemOptions) {
		o.Embedding = fn
	}
}

// ChromemIndex is a core.Retriever over an embedded chromem-go vector store.
// Collections are created on first use; each logical knowledge set maps to
// one collection.
type ChromemIndex struct {
	db     *chromem.DB
	embed  chromem.EmbeddingFunc
	logger logging.Logger
}

// NewChromemIndex creates the index, persistent when a path is configured.
func NewChromemIndex(optFns ...func(o *ChromemOptions)) (*ChromemIndex, error) {
	opts := ChromemOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	var (
		db  *chromem.DB
		err error
	)
	if opts.Path != "" {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open index at %s: %w", opts.Path, err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &ChromemIndex{db: db, embed: opts.Embedding, logger: opts.Logger}, nil
}

// Query implements core.Retriever. k is clamped to the collection size since
// chromem rejects oversized result requests; an empty collection returns no
// passages and no error.
func (c *ChromemIndex) Query(ctx context.Context, collection, query string, k int) ([]core.Passage, error) {
	col, err := c.db.GetOrCreateCollection(collection, nil, c.embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", collection, err)
	}

	if k <= 0 {
		k = core.DefaultTopK
	}
	if count := col.Count(); count == 0 {
		return []core.Passage{}, nil
	} else if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection %q: %w", collection, err)
	}

	passages := make([]core.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, core.Passage{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		})
	}
	return passages, nil
}

// Ingest embeds and stores documents, four at a time.
func (c *ChromemIndex) Ingest(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	col, err := c.db.GetOrCreateCollection(collection, nil, c.embed)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", collection, err)
	}

	converted := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		id := doc.ID
		if id == "" {
			id = core.NewID()
		}
		converted = append(converted, chromem.Document{
			ID:       id,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		})
	}

	if err := col.AddDocuments(ctx, converted, 4); err != nil {
		return fmt.Errorf("ingest into %q: %w", collection, err)
	}

	c.logger.Debug("documents ingested", "collection", collection, "count", len(docs))
	return nil
}

// DeleteCollection drops a knowledge set and its documents.
func (c *ChromemIndex) DeleteCollection(collection string) error {
	if err := c.db.DeleteCollection(collection); err != nil {
		return fmt.Errorf("delete collection %q: %w", collection, err)
	}
	return nil
}

// Collections returns the known knowledge sets, sorted.
func (c *ChromemIndex) Collections() []string {
	cols := c.db.ListCollections()
	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
