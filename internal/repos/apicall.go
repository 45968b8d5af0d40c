package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type ApiCallRepo interface {
  Create(ctx context.Context, tx *gorm.DB, calls []*types.ApiCall) ([]*types.ApiCall, error)
  ListForQuery(ctx context.Context, tx *gorm.DB, queryID uuid.UUID) ([]*types.ApiCall, error)
}

type apiCallRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewApiCallRepo(db *gorm.DB, baseLog *logger.Logger) ApiCallRepo {
  repoLog := baseLog.With("repo", "ApiCallRepo")
  return &apiCallRepo{db: db, log: repoLog}
}

func (ar *apiCallRepo) Create(ctx context.Context, tx *gorm.DB, calls []*types.ApiCall) ([]*types.ApiCall, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  if len(calls) == 0 {
    return []*types.ApiCall{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&calls).Error; err != nil {
    return nil, err
  }

  return calls, nil
}

func (ar *apiCallRepo) ListForQuery(ctx context.Context, tx *gorm.DB, queryID uuid.UUID) ([]*types.ApiCall, error) {
  transaction := tx
  if transaction == nil {
    transaction = ar.db
  }

  var results []*types.ApiCall

  if err := transaction.WithContext(ctx).
    Where("query_id = ?", queryID).
    Order("timestamp ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}
