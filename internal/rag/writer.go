package rag

import (
	"context"
	"fmt"

	"github.com/careerlens/careerlens-backend/internal/clients/pinecone"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// IndexWriteError reports a failed batch along with how many records made it
// into the index before the failure. Re-running the write is safe because
// upserts overwrite by id.
type IndexWriteError struct {
	Written int
	Err     error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write failed after %d records: %v", e.Written, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// VectorUpserter is the slice of VectorStore the writer needs.
type VectorUpserter interface {
	Upsert(ctx context.Context, namespace string, vectors []pinecone.Vector) error
}

// IndexWriter pushes guarded records into the index in fixed-size batches.
type IndexWriter struct {
	log       *logger.Logger
	store     VectorUpserter
	guard     *MetadataGuard
	batchSize int
}

func NewIndexWriter(log *logger.Logger, store VectorUpserter, guard *MetadataGuard, batchSize int) *IndexWriter {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &IndexWriter{
		log:       log.With("service", "IndexWriter"),
		store:     store,
		guard:     guard,
		batchSize: batchSize,
	}
}

// Write guards every record, drops the ones that cannot fit the metadata
// ceiling, and upserts the rest sequentially in batches. It returns the
// number of records written; a batch failure aborts the remaining batches
// with an IndexWriteError carrying that count.
func (w *IndexWriter) Write(ctx context.Context, namespace string, records []Record) (int, error) {
	kept := make([]pinecone.Vector, 0, len(records))
	for _, rec := range records {
		guarded, ok := w.guard.Enforce(rec)
		if !ok {
			continue
		}
		kept = append(kept, pinecone.Vector{
			ID:       guarded.ID,
			Values:   guarded.Vector,
			Metadata: guarded.Metadata,
		})
	}
	if dropped := len(records) - len(kept); dropped > 0 {
		w.log.Warn("Dropped oversized records before upsert", "dropped", dropped, "kept", len(kept))
	}

	written := 0
	total := len(kept)
	batches := (total + w.batchSize - 1) / w.batchSize
	for start := 0; start < total; start += w.batchSize {
		end := start + w.batchSize
		if end > total {
			end = total
		}
		batch := kept[start:end]
		w.log.Info("Upserting vector batch",
			"batch", start/w.batchSize+1,
			"batches", batches,
			"size", len(batch),
			"namespace", namespace,
		)
		if err := w.store.Upsert(ctx, namespace, batch); err != nil {
			return written, &IndexWriteError{Written: written, Err: err}
		}
		written += len(batch)
	}
	return written, nil
}
