package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type StoryOutlineRepo interface {
  Create(ctx context.Context, tx *gorm.DB, outlines []*types.StoryOutline) ([]*types.StoryOutline, error)
  GetByID(ctx context.Context, tx *gorm.DB, outlineID uuid.UUID) (*types.StoryOutline, error)
  GetCurrentForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) (*types.StoryOutline, error)
  ListForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) ([]*types.StoryOutline, error)
  InvalidateForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) error
  UpdateFields(ctx context.Context, tx *gorm.DB, outlineID uuid.UUID, fields map[string]interface{}) error
}

type storyOutlineRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStoryOutlineRepo(db *gorm.DB, baseLog *logger.Logger) StoryOutlineRepo {
  repoLog := baseLog.With("repo", "StoryOutlineRepo")
  return &storyOutlineRepo{db: db, log: repoLog}
}

func (sor *storyOutlineRepo) Create(ctx context.Context, tx *gorm.DB, outlines []*types.StoryOutline) ([]*types.StoryOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  if len(outlines) == 0 {
    return []*types.StoryOutline{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&outlines).Error; err != nil {
    return nil, err
  }

  return outlines, nil
}

func (sor *storyOutlineRepo) GetByID(ctx context.Context, tx *gorm.DB, outlineID uuid.UUID) (*types.StoryOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  var result types.StoryOutline

  if err := transaction.WithContext(ctx).
    Where("id = ?", outlineID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// GetCurrentForStory returns the single non-invalidated outline for the
// story. Invalidation keeps at most one current row per story.
func (sor *storyOutlineRepo) GetCurrentForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) (*types.StoryOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  var result types.StoryOutline

  if err := transaction.WithContext(ctx).
    Where("story_id = ? AND invalidated = ?", storyID, false).
    Order("created_at DESC").
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (sor *storyOutlineRepo) ListForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) ([]*types.StoryOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  var results []*types.StoryOutline

  if err := transaction.WithContext(ctx).
    Where("story_id = ?", storyID).
    Order("created_at ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (sor *storyOutlineRepo) InvalidateForStory(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  return transaction.WithContext(ctx).
    Model(&types.StoryOutline{}).
    Where("story_id = ? AND invalidated = ?", storyID, false).
    Update("invalidated", true).Error
}

func (sor *storyOutlineRepo) UpdateFields(ctx context.Context, tx *gorm.DB, outlineID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = sor.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.StoryOutline{}).
    Where("id = ?", outlineID).
    Updates(fields).Error
}
