package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type QueryRepo interface {
  Create(ctx context.Context, tx *gorm.DB, queries []*types.Query) ([]*types.Query, error)
  GetByID(ctx context.Context, tx *gorm.DB, queryID uuid.UUID) (*types.Query, error)
  ListForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) ([]*types.Query, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, queryID uuid.UUID, fields map[string]interface{}) error
}

type queryRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewQueryRepo(db *gorm.DB, baseLog *logger.Logger) QueryRepo {
  repoLog := baseLog.With("repo", "QueryRepo")
  return &queryRepo{db: db, log: repoLog}
}

func (qr *queryRepo) Create(ctx context.Context, tx *gorm.DB, queries []*types.Query) ([]*types.Query, error) {
  transaction := tx
  if transaction == nil {
    transaction = qr.db
  }

  if len(queries) == 0 {
    return []*types.Query{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&queries).Error; err != nil {
    return nil, err
  }

  return queries, nil
}

func (qr *queryRepo) GetByID(ctx context.Context, tx *gorm.DB, queryID uuid.UUID) (*types.Query, error) {
  transaction := tx
  if transaction == nil {
    transaction = qr.db
  }

  var result types.Query

  if err := transaction.WithContext(ctx).
    Where("id = ?", queryID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (qr *queryRepo) ListForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) ([]*types.Query, error) {
  transaction := tx
  if transaction == nil {
    transaction = qr.db
  }

  var results []*types.Query

  if err := transaction.WithContext(ctx).
    Where("story_id = ?", storyID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (qr *queryRepo) UpdateFields(ctx context.Context, tx *gorm.DB, queryID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = qr.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.Query{}).
    Where("id = ?", queryID).
    Updates(fields).Error
}
