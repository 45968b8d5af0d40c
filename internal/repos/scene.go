package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type SceneRepo interface {
  Create(ctx context.Context, tx *gorm.DB, scenes []*types.Scene) ([]*types.Scene, error)
  GetByID(ctx context.Context, tx *gorm.DB, sceneID uuid.UUID) (*types.Scene, error)
  GetCurrentForSceneOutline(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) (*types.Scene, error)
  InvalidateForSceneOutline(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) error
  UpdateFields(ctx context.Context, tx *gorm.DB, sceneID uuid.UUID, fields map[string]interface{}) error
}

type sceneRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSceneRepo(db *gorm.DB, baseLog *logger.Logger) SceneRepo {
  repoLog := baseLog.With("repo", "SceneRepo")
  return &sceneRepo{db: db, log: repoLog}
}

func (sr *sceneRepo) Create(ctx context.Context, tx *gorm.DB, scenes []*types.Scene) ([]*types.Scene, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if len(scenes) == 0 {
    return []*types.Scene{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&scenes).Error; err != nil {
    return nil, err
  }

  return scenes, nil
}

func (sr *sceneRepo) GetByID(ctx context.Context, tx *gorm.DB, sceneID uuid.UUID) (*types.Scene, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var result types.Scene

  if err := transaction.WithContext(ctx).
    Where("id = ?", sceneID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (sr *sceneRepo) GetCurrentForSceneOutline(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) (*types.Scene, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var result types.Scene

  if err := transaction.WithContext(ctx).
    Where("scene_outline_id = ? AND invalidated = ?", sceneOutlineID, false).
    Order("created_at DESC").
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (sr *sceneRepo) InvalidateForSceneOutline(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  return transaction.WithContext(ctx).
    Model(&types.Scene{}).
    Where("scene_outline_id = ? AND invalidated = ?", sceneOutlineID, false).
    Update("invalidated", true).Error
}

func (sr *sceneRepo) UpdateFields(ctx context.Context, tx *gorm.DB, sceneID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.Scene{}).
    Where("id = ?", sceneID).
    Updates(fields).Error
}
