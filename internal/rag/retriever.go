package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/careerlens/careerlens-backend/internal/clients/pinecone"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// VectorQuerier is the slice of VectorStore the assembler needs.
type VectorQuerier interface {
	Query(ctx context.Context, namespace string, q []float32, topK int, filter map[string]any) ([]pinecone.Match, error)
}

// ContextAssembler answers similarity queries: it embeds the query, searches
// one namespace and renders the matches into the context string consumed by
// downstream generation.
type ContextAssembler struct {
	log      *logger.Logger
	embedder *Embedder
	store    VectorQuerier
	topK     int
}

func NewContextAssembler(log *logger.Logger, embedder *Embedder, store VectorQuerier, topK int) *ContextAssembler {
	if topK <= 0 {
		topK = 5
	}
	return &ContextAssembler{
		log:      log.With("service", "ContextAssembler"),
		embedder: embedder,
		store:    store,
		topK:     topK,
	}
}

// GetContext renders the topK nearest stored utterances for query. Zero
// matches is a valid outcome and returns "": the user simply has no relevant
// history. An empty query embedding or any provider/index failure is an
// error, never silently empty.
func (a *ContextAssembler) GetContext(ctx context.Context, query, namespace string, topK int) (string, error) {
	if topK <= 0 {
		topK = a.topK
	}

	vecs, err := a.embedder.Embed(ctx, []string{query}, EmbedKindQuery)
	if err != nil {
		return "", err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return "", fmt.Errorf("empty query embedding for %q", query)
	}

	matches, err := a.store.Query(ctx, namespace, vecs[0], topK, nil)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		a.log.Debug("No similar utterances found", "namespace", namespace)
		return "", nil
	}

	// Answer before question: context reads as "what was said" before "what
	// was asked", matching how assistant_text links to its user utterance.
	var parts []string
	for i, m := range matches {
		if assistant, _ := m.Metadata["assistant_text"].(string); assistant != "" {
			parts = append(parts, "Assistant: "+assistant)
		}
		if user, _ := m.Metadata["text"].(string); user != "" {
			parts = append(parts, "User: "+user)
		}
		if i < len(matches)-1 {
			parts = append(parts, "---")
		}
	}
	return strings.Join(parts, "\n\n"), nil
}
