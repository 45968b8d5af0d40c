package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type ChapterOutlineRepo interface {
  Create(ctx context.Context, tx *gorm.DB, chapters []*types.ChapterOutline) ([]*types.ChapterOutline, error)
  GetByID(ctx context.Context, tx *gorm.DB, chapterID uuid.UUID) (*types.ChapterOutline, error)
  GetCurrentForStoryOutline(ctx context.Context, tx *gorm.DB, storyOutlineID uuid.UUID) ([]*types.ChapterOutline, error)
  InvalidateForStoryOutline(ctx context.Context, tx *gorm.DB, storyOutlineID uuid.UUID) error
  UpdateFields(ctx context.Context, tx *gorm.DB, chapterID uuid.UUID, fields map[string]interface{}) error
}

type chapterOutlineRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChapterOutlineRepo(db *gorm.DB, baseLog *logger.Logger) ChapterOutlineRepo {
  repoLog := baseLog.With("repo", "ChapterOutlineRepo")
  return &chapterOutlineRepo{db: db, log: repoLog}
}

func (cor *chapterOutlineRepo) Create(ctx context.Context, tx *gorm.DB, chapters []*types.ChapterOutline) ([]*types.ChapterOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = cor.db
  }

  if len(chapters) == 0 {
    return []*types.ChapterOutline{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&chapters).Error; err != nil {
    return nil, err
  }

  return chapters, nil
}

func (cor *chapterOutlineRepo) GetByID(ctx context.Context, tx *gorm.DB, chapterID uuid.UUID) (*types.ChapterOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = cor.db
  }

  var result types.ChapterOutline

  if err := transaction.WithContext(ctx).
    Where("id = ?", chapterID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

// GetCurrentForStoryOutline returns the non-invalidated chapters in story
// order.
func (cor *chapterOutlineRepo) GetCurrentForStoryOutline(ctx context.Context, tx *gorm.DB, storyOutlineID uuid.UUID) ([]*types.ChapterOutline, error) {
  transaction := tx
  if transaction == nil {
    transaction = cor.db
  }

  var results []*types.ChapterOutline

  if err := transaction.WithContext(ctx).
    Where("story_outline_id = ? AND invalidated = ?", storyOutlineID, false).
    Order("chapter_number ASC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (cor *chapterOutlineRepo) InvalidateForStoryOutline(ctx context.Context, tx *gorm.DB, storyOutlineID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = cor.db
  }

  return transaction.WithContext(ctx).
    Model(&types.ChapterOutline{}).
    Where("story_outline_id = ? AND invalidated = ?", storyOutlineID, false).
    Update("invalidated", true).Error
}

func (cor *chapterOutlineRepo) UpdateFields(ctx context.Context, tx *gorm.DB, chapterID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = cor.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.ChapterOutline{}).
    Where("id = ?", chapterID).
    Updates(fields).Error
}
