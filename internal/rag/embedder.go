package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// EmbedKind distinguishes document (ingestion) embeddings from query
// embeddings. The two are not interchangeable for an index built on
// asymmetric representations.
type EmbedKind string

const (
	EmbedKindDocument EmbedKind = "document"
	EmbedKindQuery    EmbedKind = "query"
)

func (k EmbedKind) inputType() string {
	if k == EmbedKindQuery {
		return "search_query"
	}
	return "search_document"
}

// ProviderError wraps any embedding-provider failure. A batch that fails
// aborts the whole Embed call; there are no partial results.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// EmbeddingProvider is the provider-facing contract, satisfied by the cohere
// client.
type EmbeddingProvider interface {
	Embed(ctx context.Context, texts []string, inputType string) ([][]float32, error)
}

type Embedder struct {
	log         *logger.Logger
	provider    EmbeddingProvider
	batchSize   int
	concurrency int
}

func NewEmbedder(log *logger.Logger, provider EmbeddingProvider, batchSize, concurrency int) *Embedder {
	if batchSize <= 0 {
		batchSize = 96
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Embedder{
		log:         log.With("service", "Embedder"),
		provider:    provider,
		batchSize:   batchSize,
		concurrency: concurrency,
	}
}

// Embed returns one vector per input, same length and order. Blank inputs are
// never sent to the provider; their slots come back nil. Provider failures
// surface as a ProviderError with no partial result.
func (e *Embedder) Embed(ctx context.Context, texts []string, kind EmbedKind) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	var idx []int
	var clean []string
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		idx = append(idx, i)
		clean = append(clean, t)
	}
	if len(clean) == 0 {
		return out, nil
	}

	inputType := kind.inputType()
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for start := 0; start < len(clean); start += e.batchSize {
		end := start + e.batchSize
		if end > len(clean) {
			end = len(clean)
		}
		start, end := start, end
		g.Go(func() error {
			vecs, err := e.provider.Embed(gctx, clean[start:end], inputType)
			if err != nil {
				return &ProviderError{Provider: "cohere", Err: err}
			}
			if len(vecs) != end-start {
				return &ProviderError{
					Provider: "cohere",
					Err:      fmt.Errorf("requested %d embeddings, got %d", end-start, len(vecs)),
				}
			}
			mu.Lock()
			for i, v := range vecs {
				out[idx[start+i]] = v
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
