package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/careerlens/careerlens-backend/internal/pkg/logger"
  "github.com/careerlens/careerlens-backend/internal/types"
)

type IngestRunRepo interface {
  Create(ctx context.Context, tx *gorm.DB, run *types.IngestRun) (*types.IngestRun, error)
  GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestRun, error)
  GetLatestByUser(ctx context.Context, tx *gorm.DB, userID string) (*types.IngestRun, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
}

type ingestRunRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewIngestRunRepo(db *gorm.DB, baseLog *logger.Logger) IngestRunRepo {
  return &ingestRunRepo{
    db:  db,
    log: baseLog.With("repo", "IngestRunRepo"),
  }
}

func (r *ingestRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.IngestRun) (*types.IngestRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if run == nil {
    return nil, nil
  }
  if err := transaction.WithContext(ctx).Create(run).Error; err != nil {
    return nil, err
  }
  return run, nil
}

func (r *ingestRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.IngestRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil {
    return nil, nil
  }
  var run types.IngestRun
  err := transaction.WithContext(ctx).
    Where("id = ?", id).
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *ingestRunRepo) GetLatestByUser(ctx context.Context, tx *gorm.DB, userID string) (*types.IngestRun, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if userID == "" {
    return nil, nil
  }
  var run types.IngestRun
  err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Limit(1).
    Find(&run).Error
  if err != nil {
    return nil, err
  }
  if run.ID == uuid.Nil {
    return nil, nil
  }
  return &run, nil
}

func (r *ingestRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if id == uuid.Nil || len(updates) == 0 {
    return nil
  }
  return transaction.WithContext(ctx).
    Model(&types.IngestRun{}).
    Where("id = ?", id).
    Updates(updates).Error
}
