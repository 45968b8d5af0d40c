package repos

import (
  "context"
  "github.com/google/uuid"
  "gorm.io/gorm"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/types"
)

type StoryRepo interface {
  Create(ctx context.Context, tx *gorm.DB, stories []*types.Story) ([]*types.Story, error)
  GetByID(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) (*types.Story, error)
  List(ctx context.Context, tx *gorm.DB, authorID *uuid.UUID) ([]*types.Story, error)
  UpdateFields(ctx context.Context, tx *gorm.DB, storyID uuid.UUID, fields map[string]interface{}) error
  Delete(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) error
}

type storyRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewStoryRepo(db *gorm.DB, baseLog *logger.Logger) StoryRepo {
  repoLog := baseLog.With("repo", "StoryRepo")
  return &storyRepo{db: db, log: repoLog}
}

func (sr *storyRepo) Create(ctx context.Context, tx *gorm.DB, stories []*types.Story) ([]*types.Story, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if len(stories) == 0 {
    return []*types.Story{}, nil
  }

  if err := transaction.WithContext(ctx).Create(&stories).Error; err != nil {
    return nil, err
  }

  return stories, nil
}

func (sr *storyRepo) GetByID(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) (*types.Story, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var result types.Story

  if err := transaction.WithContext(ctx).
    Where("id = ?", storyID).
    First(&result).Error; err != nil {
    return nil, err
  }
  return &result, nil
}

func (sr *storyRepo) List(ctx context.Context, tx *gorm.DB, authorID *uuid.UUID) ([]*types.Story, error) {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  var results []*types.Story

  query := transaction.WithContext(ctx).Order("created_at DESC")
  if authorID != nil {
    query = query.Where("author_id = ?", *authorID)
  }

  if err := query.Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (sr *storyRepo) UpdateFields(ctx context.Context, tx *gorm.DB, storyID uuid.UUID, fields map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  if len(fields) == 0 {
    return nil
  }

  return transaction.WithContext(ctx).
    Model(&types.Story{}).
    Where("id = ?", storyID).
    Updates(fields).Error
}

func (sr *storyRepo) Delete(ctx context.Context, tx *gorm.DB, storyID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = sr.db
  }

  return transaction.WithContext(ctx).
    Where("id = ?", storyID).
    Delete(&types.Story{}).Error
}
