package rag

import (
	"encoding/json"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
)

// Record is an embedding ready for the index: id, vector and side-payload.
type Record struct {
	ID       string
	Vector   []float32
	Metadata map[string]any
}

// MetadataGuard enforces the index's per-record metadata byte ceiling.
// Oversized records get their shrinkable fields halved, in priority order,
// until the serialized payload fits; a record that cannot be made to fit is
// dropped rather than truncated past recognizability.
type MetadataGuard struct {
	log      *logger.Logger
	maxBytes int
	// shrinkable fields in shrink-priority order (most dispensable first).
	shrinkable []string
}

const shrinkAttemptsPerField = 5

func NewMetadataGuard(log *logger.Logger, maxBytes int, shrinkable []string) *MetadataGuard {
	if maxBytes <= 0 {
		maxBytes = 40960
	}
	if len(shrinkable) == 0 {
		shrinkable = []string{"assistant_text", "text"}
	}
	return &MetadataGuard{
		log:        log.With("service", "MetadataGuard"),
		maxBytes:   maxBytes,
		shrinkable: shrinkable,
	}
}

// Enforce returns the record, shrunk if needed, and ok=false when it had to
// be dropped. The input record is never mutated.
func (g *MetadataGuard) Enforce(rec Record) (Record, bool) {
	size, err := metadataSize(rec.Metadata)
	if err != nil {
		g.log.Warn("Metadata not serializable, dropping record", "id", rec.ID, "error", err)
		return Record{}, false
	}
	if size <= g.maxBytes {
		return rec, true
	}

	meta := make(map[string]any, len(rec.Metadata))
	for k, v := range rec.Metadata {
		meta[k] = v
	}

	for _, field := range g.shrinkable {
		val, ok := meta[field].(string)
		if !ok || val == "" {
			continue
		}
		for attempt := 0; attempt < shrinkAttemptsPerField; attempt++ {
			val = halve(val)
			meta[field] = val
			size, err = metadataSize(meta)
			if err != nil {
				g.log.Warn("Metadata not serializable, dropping record", "id", rec.ID, "error", err)
				return Record{}, false
			}
			if size <= g.maxBytes {
				return Record{ID: rec.ID, Vector: rec.Vector, Metadata: meta}, true
			}
			if val == "" {
				break
			}
		}
	}

	g.log.Warn("Metadata exceeds size ceiling after shrinking, dropping record",
		"id", rec.ID,
		"size_bytes", size,
		"max_bytes", g.maxBytes,
	)
	return Record{}, false
}

func metadataSize(meta map[string]any) (int, error) {
	b, err := json.Marshal(meta)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// halve cuts a string to half its rune count, keeping the front.
func halve(s string) string {
	runes := []rune(s)
	return string(runes[:len(runes)/2])
}
