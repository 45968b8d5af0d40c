package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type SceneOutlineRepo interface {
  Create(ctx context.Context, tx *gorm.DB, scenes []*types.SceneOutline) ([]*types.SceneOutline, error)
  GetByID(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) (*types.SceneOutline, error)
  GetCurrentForChapterOutline(ctx context.Context, tx *gorm.DB, chapterOutlineID uuid.UUID) ([]*types.SceneOutline, error)
  InvalidateForChapterOutline(ctx context.Context, tx *gorm.DB, chapterOutlineID uuid.UUID) error
  UpdateFields(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID, fields map[string]interface{}) error
}

type sceneOutlineRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSceneOutlineRepo(db *gorm.DB, baseLog *logger.Logger) SceneOutlineRepo {
  repoLog := baseLog.With("repo", "SceneOutlineRepo")
  return &sceneOutlineRepo{db: db, log: repoLog}
}

func (sor *sceneOutlineRepo) Create(ctx context.Context, tx *gorm.DB, scenes []*types.SceneOutline) ([]*types.SceneOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  if len(scenes) == 0 {
    return []*types.SceneOutline{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&scenes).Error; err != nil {
    return nil, err
  }

  return scenes, nil
}

func (sor *sceneOutlineRepo) GetByID(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID) (*types.SceneOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  var result types.SceneOutline

  if err := transaction.WithContext(ctx).
    Where("id = ?", sceneOutlineID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (sor *sceneOutlineRepo) GetCurrentForChapterOutline(ctx context.Context, tx *gorm.DB, chapterOutlineID uuid.UUID) ([]*types.SceneOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  var results []*types.SceneOutline

  if err := transaction.WithContext(ctx).
    Where("chapter_outline_id = ? AND invalidated = ?", chapterOutlineID, false).
    Order("scene_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (sor *sceneOutlineRepo) InvalidateForChapterOutline(ctx context.Context, tx *gorm.DB, chapterOutlineID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  return transaction.WithContext(ctx).
    Model(&types.SceneOutline{}).
    Where("chapter_outline_id = ? AND invalidated = ?", chapterOutlineID, false).
    Update("invalidated", true).Error
}

func (sor *sceneOutlineRepo) UpdateFields(ctx context.Context, tx *gorm.DB, sceneOutlineID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.SceneOutline{}).
    Where("id = ?", sceneOutlineID).
    Updates(fields).Error
}
