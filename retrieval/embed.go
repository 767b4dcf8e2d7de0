package retrieval

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ragflow-go/ragflow/flow"
)

// Embedder is the minimal capability EmbedDocuments needs; satisfied by
// collection.EmbeddingService without retrieval importing collection (which
// would create an import cycle, since collection depends on retrieval for
// Document).
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedDocumentsFanOut embeds texts in batches capped at batchSize,
// reassembling results in the original order regardless of which batch
// finishes first (P3). A partial batch failure surfaces as
// BatchProcessingError naming the failing batch's size; no partial output
// is ever returned.
func EmbedDocumentsFanOut(ctx context.Context, embedder Embedder, texts []string, batchSize int, retry flow.RetryPolicy) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, flow.ErrEmptyInput
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}

	type batch struct {
		start int
		texts []string
	}
	var batches []batch
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	results := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			var vectors [][]float32
			err := retry.Do(gctx, func(ctx context.Context) error {
				v, err := embedder.EmbedDocuments(ctx, b.texts)
				vectors = v
				return err
			})
			if err != nil {
				return &BatchProcessingError{BatchSize: len(b.texts), Cause: err}
			}
			if len(vectors) != len(b.texts) {
				return &BatchProcessingError{BatchSize: len(b.texts), Cause: fmt.Errorf("provider returned %d vectors for %d inputs", len(vectors), len(b.texts))}
			}
			for i, v := range vectors {
				results[b.start+i] = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// BatchProcessingError reports a failed embedding batch, naming how many
// documents were in the failing batch so callers can size retries or alert.
type BatchProcessingError struct {
	BatchSize int
	Cause     error
}

func (e *BatchProcessingError) Error() string {
	return fmt.Sprintf("retrieval: batch of %d documents failed: %v", e.BatchSize, e.Cause)
}

func (e *BatchProcessingError) Unwrap() error { return e.Cause }

// DimensionCache records the embedding vector length for a (provider,
// model) pair the first time it is probed, process-wide and shared across
// executions (spec.md §5: "the per-provider dimension cache is a shared
// mutable map guarded by a mutex").
type DimensionCache struct {
	mu    sync.Mutex
	cache map[string]int
}

// NewDimensionCache returns an empty cache.
func NewDimensionCache() *DimensionCache {
	return &DimensionCache{cache: make(map[string]int)}
}

// Probe returns the cached dimension for (provider, model), embedding probe
// via embedQuery and recording the result on first use.
func (c *DimensionCache) Probe(ctx context.Context, provider, model string, embedQuery func(ctx context.Context) ([]float32, error)) (int, error) {
	key := provider + "/" + model

	c.mu.Lock()
	if dim, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return dim, nil
	}
	c.mu.Unlock()

	vec, err := embedQuery(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if dim, ok := c.cache[key]; ok {
		return dim, nil
	}
	c.cache[key] = len(vec)
	return len(vec), nil
}

const dimensionProbeText = "dimension probe"

// DimensionProbeText is the short probe string used to discover a
// provider/model's vector length the first time it is needed.
func DimensionProbeText() string { return dimensionProbeText }
