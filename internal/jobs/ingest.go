package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
	"github.com/careerlens/careerlens-backend/internal/rag"
	"github.com/careerlens/careerlens-backend/internal/rag/index"
	"github.com/careerlens/careerlens-backend/internal/transcript"
	"github.com/careerlens/careerlens-backend/internal/types"
)

// Machine-readable failure reasons written to the run row.
const (
	ReasonExportDownloadFailed = "export_download_failed"
	ReasonExportParseFailed    = "export_parse_failed"
	ReasonNoChunksToProcess    = "no_chunks_to_process"
	ReasonEmbeddingFailed      = "embedding_failed"
	ReasonIndexWriteFailed     = "index_write_failed"
	ReasonQueueFull            = "job_queue_full"
)

const archiveTimeout = 2 * time.Minute

// ExportSource is the object-storage slice the pipeline downloads exports
// from; gcp.BucketService satisfies it.
type ExportSource interface {
	DownloadFile(ctx context.Context, key string) (io.ReadCloser, error)
	UploadFile(ctx context.Context, key string, file io.Reader) error
}

// IngestService runs the whole ingestion pipeline for one export: download,
// extract or normalize, chunk user turns, embed, tag, guard and upsert.
// Enqueue is fire-and-forget for the caller; progress is reported through the
// StatusStore only.
type IngestService interface {
	Enqueue(ctx context.Context, userID, exportKey string) (*types.IngestRun, error)
	Run(ctx context.Context, run *types.IngestRun)
}

type ingestService struct {
	log        *logger.Logger
	worker     *Worker
	status     StatusStore
	source     ExportSource
	extractor  *transcript.Extractor
	normalizer *transcript.Normalizer
	chunker    *rag.Chunker
	embedder   *rag.Embedder
	tagger     *rag.CompetencyTagger
	writer     *rag.IndexWriter
	model      string
}

func NewIngestService(
	log *logger.Logger,
	worker *Worker,
	status StatusStore,
	source ExportSource,
	extractor *transcript.Extractor,
	normalizer *transcript.Normalizer,
	chunker *rag.Chunker,
	embedder *rag.Embedder,
	tagger *rag.CompetencyTagger,
	writer *rag.IndexWriter,
	model string,
) IngestService {
	return &ingestService{
		log:        log.With("service", "IngestService"),
		worker:     worker,
		status:     status,
		source:     source,
		extractor:  extractor,
		normalizer: normalizer,
		chunker:    chunker,
		embedder:   embedder,
		tagger:     tagger,
		writer:     writer,
		model:      model,
	}
}

// Enqueue records a pending run and hands the pipeline to the worker pool.
// The task runs under the worker's context, not the request's.
func (s *ingestService) Enqueue(ctx context.Context, userID, exportKey string) (*types.IngestRun, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(exportKey) == "" {
		return nil, fmt.Errorf("userID and exportKey required")
	}
	run, err := s.status.Begin(ctx, userID, exportKey)
	if err != nil {
		return nil, fmt.Errorf("create ingest run: %w", err)
	}

	if err := s.worker.Submit(func(taskCtx context.Context) {
		s.Run(taskCtx, run)
	}); err != nil {
		if markErr := s.status.MarkFailed(ctx, run, ReasonQueueFull); markErr != nil {
			s.log.Error("Failed to mark queue-full run failed", "run_id", run.ID, "error", markErr)
		}
		return run, err
	}
	return run, nil
}

// Run executes the pipeline for one run. Failures mark the run failed with a
// short machine reason and stop; they never panic out of the worker.
func (s *ingestService) Run(ctx context.Context, run *types.IngestRun) {
	log := s.log.With("run_id", run.ID, "user_id", run.UserID)

	if err := s.status.MarkRunning(ctx, run); err != nil {
		log.Error("Failed to mark run running", "error", err)
		return
	}

	data, err := s.download(ctx, run.ExportKey)
	if err != nil {
		log.Error("Export download failed", "export_key", run.ExportKey, "error", err)
		s.fail(ctx, run, ReasonExportDownloadFailed)
		return
	}

	convs, err := s.parse(data, run.ExportKey, log)
	if err != nil {
		log.Error("Export parse failed", "error", err)
		s.fail(ctx, run, ReasonExportParseFailed)
		return
	}
	log.Info("Export parsed", "conversations", len(convs))

	chunks, assistantByChunk := s.chunkUserTurns(convs)
	if len(chunks) == 0 {
		log.Warn("Export has no user turns, skipping")
		if err := s.status.MarkSkipped(ctx, run, ReasonNoChunksToProcess); err != nil {
			log.Error("Failed to mark run skipped", "error", err)
		}
		return
	}
	log.Info("User turns chunked", "chunks", len(chunks))

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts, rag.EmbedKindDocument)
	if err != nil {
		log.Error("Embedding failed", "error", err)
		s.fail(ctx, run, ReasonEmbeddingFailed)
		return
	}

	s.primeTagger(ctx, log)

	records := make([]rag.Record, 0, len(chunks))
	for i, ch := range chunks {
		if vectors[i] == nil {
			continue
		}
		meta := map[string]any{
			"text":               ch.Text,
			"assistant_text":     assistantByChunk[ch.ID],
			"conversation_id":    ch.SourceID,
			"conversation_title": ch.Title,
			"role":               transcript.RoleUser,
			"chunk_index":        ch.Index,
			"total_chunks":       ch.Total,
			"previous_chunk_id":  ch.PreviousID,
			"next_chunk_id":      ch.NextID,
		}
		if s.tagger != nil && s.tagger.Primed() {
			if tags := s.tagger.Tag(vectors[i]); len(tags) > 0 {
				meta["competency_tags"] = tags
			}
		}
		records = append(records, rag.Record{ID: ch.ID, Vector: vectors[i], Metadata: meta})
	}

	namespace := index.ConversationNamespace(run.UserID)
	written, err := s.writer.Write(ctx, namespace, records)
	if err != nil {
		log.Error("Index write failed", "written", written, "error", err)
		s.fail(ctx, run, ReasonIndexWriteFailed)
		return
	}

	result := RunResult{
		ConversationCount: len(convs),
		ChunkCount:        len(chunks),
		VectorCount:       written,
		EmbeddingModel:    s.model,
	}
	if err := s.status.MarkCompleted(ctx, run, result); err != nil {
		log.Error("Failed to mark run completed", "error", err)
		return
	}
	log.Info("Ingestion completed",
		"conversations", result.ConversationCount,
		"chunks", result.ChunkCount,
		"vectors", result.VectorCount,
	)
}

func (s *ingestService) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.source.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("export blob %q is empty", key)
	}
	return data, nil
}

// parse picks the HTML extraction path or the JSON normalization path based
// on the blob itself, then archives the normalized form next to the original
// so later runs can skip extraction.
func (s *ingestService) parse(data []byte, exportKey string, log *logger.Logger) ([]transcript.Conversation, error) {
	if !transcript.IsHTMLExport(data) {
		return s.normalizer.Normalize(data)
	}
	convs, err := s.extractor.Extract(string(data))
	if err != nil {
		return nil, err
	}
	s.archive(convs, exportKey, log)
	return convs, nil
}

// archive is best-effort: an archival failure never fails the run.
func (s *ingestService) archive(convs []transcript.Conversation, exportKey string, log *logger.Logger) {
	raw, err := json.Marshal(map[string]any{"conversations": convs})
	if err != nil {
		return
	}
	key := exportKey + ".json"
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()
	if err := s.source.UploadFile(ctx, key, bytes.NewReader(raw)); err != nil {
		log.Warn("Failed to archive converted export", "key", key, "error", err)
	}
}

// userChunk pairs a chunk with its conversation title for metadata.
type userChunk struct {
	rag.Chunk
	Title string
}

// chunkUserTurns walks the conversations, chunks every user message and
// records the assistant turn that preceded it. Assistant text rides along as
// metadata so retrieval can show the answer before the question.
func (s *ingestService) chunkUserTurns(convs []transcript.Conversation) ([]userChunk, map[string]string) {
	var out []userChunk
	assistantByChunk := make(map[string]string)
	for _, conv := range convs {
		lastAssistant := ""
		for i, msg := range conv.Messages {
			switch msg.Role {
			case transcript.RoleAssistant:
				lastAssistant = msg.Text
			case transcript.RoleUser:
				for _, ch := range s.chunker.Split(conv.ID, i, msg.Text) {
					out = append(out, userChunk{Chunk: ch, Title: conv.Title})
					assistantByChunk[ch.ID] = lastAssistant
				}
			}
		}
	}
	return out, assistantByChunk
}

func (s *ingestService) fail(ctx context.Context, run *types.IngestRun, reason string) {
	if err := s.status.MarkFailed(ctx, run, reason); err != nil {
		s.log.Error("Failed to mark run failed", "run_id", run.ID, "reason", reason, "error", err)
	}
}

func (s *ingestService) primeTagger(ctx context.Context, log *logger.Logger) {
	if s.tagger == nil || s.tagger.Primed() {
		return
	}
	if err := s.tagger.Prime(ctx); err != nil {
		log.Warn("Competency tagger priming failed, continuing untagged", "error", err)
	}
}
