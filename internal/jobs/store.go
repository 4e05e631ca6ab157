package jobs

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/careerlens/careerlens-backend/internal/clients/redis"
	"github.com/careerlens/careerlens-backend/internal/pkg/logger"
	"github.com/careerlens/careerlens-backend/internal/repos"
	"github.com/careerlens/careerlens-backend/internal/types"
)

// RunResult is the summary written to the run row when ingestion finishes.
type RunResult struct {
	ConversationCount int    `json:"conversation_count"`
	ChunkCount        int    `json:"chunk_count"`
	VectorCount       int    `json:"vector_count"`
	EmbeddingModel    string `json:"embedding_model,omitempty"`
}

// StatusStore owns every ingest run status transition: it writes the run row
// and mirrors the transition onto the status bus so the web layer can stream
// it. The pipeline itself never reads status back during a run.
type StatusStore interface {
	Begin(ctx context.Context, userID, exportKey string) (*types.IngestRun, error)
	MarkRunning(ctx context.Context, run *types.IngestRun) error
	MarkCompleted(ctx context.Context, run *types.IngestRun, result RunResult) error
	MarkFailed(ctx context.Context, run *types.IngestRun, reason string) error
	MarkSkipped(ctx context.Context, run *types.IngestRun, reason string) error
}

type statusStore struct {
	log  *logger.Logger
	repo repos.IngestRunRepo
	bus  redis.StatusBus // optional, nil when Redis is not configured
}

func NewStatusStore(log *logger.Logger, repo repos.IngestRunRepo, bus redis.StatusBus) StatusStore {
	return &statusStore{
		log:  log.With("service", "IngestStatusStore"),
		repo: repo,
		bus:  bus,
	}
}

func (s *statusStore) Begin(ctx context.Context, userID, exportKey string) (*types.IngestRun, error) {
	run := &types.IngestRun{
		UserID:    userID,
		ExportKey: exportKey,
		Status:    types.IngestStatusPending,
	}
	run, err := s.repo.Create(ctx, nil, run)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, run, "")
	return run, nil
}

func (s *statusStore) MarkRunning(ctx context.Context, run *types.IngestRun) error {
	now := time.Now()
	run.Status = types.IngestStatusRunning
	run.StartedAt = &now
	err := s.repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":     types.IngestStatusRunning,
		"started_at": now,
	})
	if err != nil {
		return err
	}
	s.publish(ctx, run, "")
	return nil
}

func (s *statusStore) MarkCompleted(ctx context.Context, run *types.IngestRun, result RunResult) error {
	now := time.Now()
	run.Status = types.IngestStatusCompleted
	run.CompletedAt = &now
	raw, _ := json.Marshal(result)
	err := s.repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":             types.IngestStatusCompleted,
		"completed_at":       now,
		"conversation_count": result.ConversationCount,
		"chunk_count":        result.ChunkCount,
		"vector_count":       result.VectorCount,
		"embedding_model":    result.EmbeddingModel,
		"result":             datatypes.JSON(raw),
	})
	if err != nil {
		return err
	}
	s.publish(ctx, run, "")
	return nil
}

func (s *statusStore) MarkFailed(ctx context.Context, run *types.IngestRun, reason string) error {
	now := time.Now()
	run.Status = types.IngestStatusFailed
	run.Error = reason
	run.CompletedAt = &now
	err := s.repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":       types.IngestStatusFailed,
		"error":        reason,
		"completed_at": now,
	})
	if err != nil {
		return err
	}
	s.publish(ctx, run, reason)
	return nil
}

func (s *statusStore) MarkSkipped(ctx context.Context, run *types.IngestRun, reason string) error {
	now := time.Now()
	run.Status = types.IngestStatusSkipped
	run.Error = reason
	run.CompletedAt = &now
	err := s.repo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":       types.IngestStatusSkipped,
		"error":        reason,
		"completed_at": now,
	})
	if err != nil {
		return err
	}
	s.publish(ctx, run, reason)
	return nil
}

// publish is best-effort: a dead bus must never fail a status transition.
func (s *statusStore) publish(ctx context.Context, run *types.IngestRun, reason string) {
	if s.bus == nil {
		return
	}
	evt := redis.StatusEvent{
		RunID:     run.ID.String(),
		UserID:    run.UserID,
		Status:    run.Status,
		Error:     reason,
		Timestamp: time.Now(),
	}
	if err := s.bus.Publish(ctx, evt); err != nil {
		s.log.Warn("Failed to publish status event", "run_id", run.ID, "error", err)
	}
}
