package rag

import (
	"fmt"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// Chunk is one token-bounded slice of a message, the unit of embedding and
// retrieval. Chunks of the same message form a doubly linked chain through
// PreviousID/NextID.
type Chunk struct {
	ID           string
	SourceID     string
	MessageIndex int
	Index        int
	Total        int
	Text         string
	PreviousID   string
	NextID       string
}

type Chunker struct {
	log       *logger.Logger
	tok       Tokenizer
	maxTokens int
}

func NewChunker(log *logger.Logger, tok Tokenizer, maxTokens int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 400
	}
	return &Chunker{
		log:       log.With("service", "Chunker"),
		tok:       tok,
		maxTokens: maxTokens,
	}
}

// Split partitions text into contiguous windows of at most maxTokens tokens
// (only the last window may be shorter). The windows cover the token sequence
// exactly, with no gap or overlap. Empty text yields no chunks.
func (c *Chunker) Split(sourceID string, messageIndex int, text string) []Chunk {
	tokens := c.tok.Encode(text)
	if len(tokens) == 0 {
		return nil
	}

	total := (len(tokens) + c.maxTokens - 1) / c.maxTokens
	out := make([]Chunk, 0, total)
	for n := 0; n < total; n++ {
		start := n * c.maxTokens
		end := start + c.maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		ch := Chunk{
			ID:           ChunkID(sourceID, n),
			SourceID:     sourceID,
			MessageIndex: messageIndex,
			Index:        n,
			Total:        total,
			Text:         c.tok.Decode(tokens[start:end]),
		}
		if n > 0 {
			ch.PreviousID = ChunkID(sourceID, n-1)
		}
		if n < total-1 {
			ch.NextID = ChunkID(sourceID, n+1)
		}
		out = append(out, ch)
	}
	return out
}

// ChunkID derives the vector id for chunk n of a source. Chunk 0 keeps the
// unmodified source id so single-chunk messages stay addressable by it.
func ChunkID(sourceID string, n int) string {
	if n == 0 {
		return sourceID
	}
	return fmt.Sprintf("%s_chunk_%d", sourceID, n)
}
