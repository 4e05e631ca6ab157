package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

const (
  IngestStatusPending   = "pending"
  IngestStatusRunning   = "running"
  IngestStatusCompleted = "completed"
  IngestStatusFailed    = "failed"
  IngestStatusSkipped   = "skipped"
)

// IngestRun tracks one background ingestion of a chat export for one user.
type IngestRun struct {
  ID                uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID            string         `gorm:"column:user_id;not null;index" json:"user_id"`
  ExportKey         string         `gorm:"column:export_key;not null" json:"export_key"`
  Status            string         `gorm:"column:status;not null;index" json:"status"`
  Error             string         `gorm:"column:error" json:"error,omitempty"`
  EmbeddingModel    string         `gorm:"column:embedding_model" json:"embedding_model,omitempty"`
  ConversationCount int            `gorm:"column:conversation_count;not null;default:0" json:"conversation_count"`
  ChunkCount        int            `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
  VectorCount       int            `gorm:"column:vector_count;not null;default:0" json:"vector_count"`
  Result            datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
  StartedAt         *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
  CompletedAt       *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
  CreatedAt         time.Time      `gorm:"not null;default:now();index" json:"created_at"`
  UpdatedAt         time.Time      `gorm:"not null;default:now()" json:"updated_at"`
  DeletedAt         gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (IngestRun) TableName() string { return "ingest_run" }
