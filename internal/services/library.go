package services

import (
  "context"
  "errors"
  "fmt"

  "github.com/google/uuid"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/repos"
  "github.com/yungbote/storygen-backend/internal/types"
)

// ErrEmailTaken rejects a registration against an existing address.
var ErrEmailTaken = errors.New("email already registered")

// LibraryService is the CRUD surface over the story tree. Edits through
// here mark the entity modified so the frontend can flag stale children.
type LibraryService interface {
  CreateUser(ctx context.Context, in UserCreateInput) (*types.User, error)
  GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error)

  CreateStory(ctx context.Context, in StoryCreateInput) (*types.Story, error)
  GetStory(ctx context.Context, storyID uuid.UUID) (*types.Story, error)
  ListStories(ctx context.Context, authorID *uuid.UUID) ([]*types.Story, error)
  UpdateStory(ctx context.Context, storyID uuid.UUID, in StoryUpdateInput) (*types.Story, error)
  DeleteStory(ctx context.Context, storyID uuid.UUID) error

  CurrentStoryOutline(ctx context.Context, storyID uuid.UUID) (*types.StoryOutline, error)
  GetStoryOutline(ctx context.Context, outlineID uuid.UUID) (*types.StoryOutline, error)
  UpdateStoryOutline(ctx context.Context, outlineID uuid.UUID, in OutlineUpdateInput) (*types.StoryOutline, error)
  ChaptersForOutline(ctx context.Context, outlineID uuid.UUID) ([]*types.ChapterOutline, error)

  GetChapterOutline(ctx context.Context, chapterID uuid.UUID) (*types.ChapterOutline, error)
  UpdateChapterOutline(ctx context.Context, chapterID uuid.UUID, in DraftUpdateInput) (*types.ChapterOutline, error)
  SceneOutlinesForChapter(ctx context.Context, chapterID uuid.UUID) ([]*types.SceneOutline, error)

  GetSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID) (*types.SceneOutline, error)
  UpdateSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID, in DraftUpdateInput) (*types.SceneOutline, error)
  CurrentSceneForOutline(ctx context.Context, sceneOutlineID uuid.UUID) (*types.Scene, error)

  GetScene(ctx context.Context, sceneID uuid.UUID) (*types.Scene, error)
  UpdateScene(ctx context.Context, sceneID uuid.UUID, in DraftUpdateInput) (*types.Scene, error)

  StoryQueries(ctx context.Context, storyID uuid.UUID) ([]*types.Query, error)
  GetQuery(ctx context.Context, queryID uuid.UUID) (*types.Query, []*types.ApiCall, error)
}

type UserCreateInput struct {
  Name  string `json:"name" binding:"required"`
  Email string `json:"email" binding:"required,email"`
}

type StoryCreateInput struct {
  AuthorID    *uuid.UUID `json:"author_id"`
  Title       string     `json:"title" binding:"required"`
  Description string     `json:"description" binding:"required"`
  Style       string     `json:"style"`
  Themes      string     `json:"themes"`
  Request     string     `json:"request"`
}

type StoryUpdateInput struct {
  Title       *string `json:"title"`
  Description *string `json:"description"`
  Style       *string `json:"style"`
  Themes      *string `json:"themes"`
  Request     *string `json:"request"`
  IsPublic    *bool   `json:"is_public"`
}

// OutlineUpdateInput edits the story outline's text fields directly.
type OutlineUpdateInput struct {
  OutlineOnesentence        *string `json:"outline_onesentence"`
  OutlineMaineventsRaw      *string `json:"outline_mainevents_raw"`
  OutlineMaineventsImproved *string `json:"outline_mainevents_improved"`
  OutlineParagraphs         *string `json:"outline_paragraphs"`
  FactSheets                *string `json:"fact_sheets"`
  Characters                *string `json:"characters"`
}

// DraftUpdateInput edits the raw/improved drafts shared by chapter
// outlines, scene outlines and scenes.
type DraftUpdateInput struct {
  Raw      *string `json:"raw"`
  Improved *string `json:"improved"`
}

type libraryService struct {
  log             *logger.Logger
  users           repos.UserRepo
  stories         repos.StoryRepo
  storyOutlines   repos.StoryOutlineRepo
  chapterOutlines repos.ChapterOutlineRepo
  sceneOutlines   repos.SceneOutlineRepo
  scenes          repos.SceneRepo
  queries         repos.QueryRepo
  apiCalls        repos.ApiCallRepo
}

func NewLibraryService(
  baseLog *logger.Logger,
  users repos.UserRepo,
  stories repos.StoryRepo,
  storyOutlines repos.StoryOutlineRepo,
  chapterOutlines repos.ChapterOutlineRepo,
  sceneOutlines repos.SceneOutlineRepo,
  scenes repos.SceneRepo,
  queries repos.QueryRepo,
  apiCalls repos.ApiCallRepo,
) LibraryService {
  svcLog := baseLog.With("service", "LibraryService")
  return &libraryService{
    log:             svcLog,
    users:           users,
    stories:         stories,
    storyOutlines:   storyOutlines,
    chapterOutlines: chapterOutlines,
    sceneOutlines:   sceneOutlines,
    scenes:          scenes,
    queries:         queries,
    apiCalls:        apiCalls,
  }
}

func (s *libraryService) CreateUser(ctx context.Context, in UserCreateInput) (*types.User, error) {
  exists, err := s.users.EmailExists(ctx, nil, in.Email)
  if err != nil {
    return nil, err
  }
  if exists {
    return nil, ErrEmailTaken
  }
  user := &types.User{Name: in.Name, Email: in.Email}
  created, err := s.users.Create(ctx, nil, []*types.User{user})
  if err != nil {
    return nil, err
  }
  return created[0], nil
}

func (s *libraryService) GetUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
  return s.users.GetByID(ctx, nil, userID)
}

func (s *libraryService) CreateStory(ctx context.Context, in StoryCreateInput) (*types.Story, error) {
  story := &types.Story{
    AuthorID:    in.AuthorID,
    Title:       in.Title,
    Description: in.Description,
    Style:       in.Style,
    Themes:      in.Themes,
    Request:     in.Request,
  }
  created, err := s.stories.Create(ctx, nil, []*types.Story{story})
  if err != nil {
    return nil, err
  }
  return created[0], nil
}

func (s *libraryService) GetStory(ctx context.Context, storyID uuid.UUID) (*types.Story, error) {
  return s.stories.GetByID(ctx, nil, storyID)
}

func (s *libraryService) ListStories(ctx context.Context, authorID *uuid.UUID) ([]*types.Story, error) {
  return s.stories.List(ctx, nil, authorID)
}

func (s *libraryService) UpdateStory(ctx context.Context, storyID uuid.UUID, in StoryUpdateInput) (*types.Story, error) {
  fields := map[string]interface{}{}
  setIf(fields, "title", in.Title)
  setIf(fields, "description", in.Description)
  setIf(fields, "style", in.Style)
  setIf(fields, "themes", in.Themes)
  setIf(fields, "request", in.Request)
  if in.IsPublic != nil {
    fields["is_public"] = *in.IsPublic
  }
  if len(fields) == 0 {
    return s.stories.GetByID(ctx, nil, storyID)
  }
  fields["modified"] = true
  if err := s.stories.UpdateFields(ctx, nil, storyID, fields); err != nil {
    return nil, err
  }
  return s.stories.GetByID(ctx, nil, storyID)
}

func (s *libraryService) DeleteStory(ctx context.Context, storyID uuid.UUID) error {
  return s.stories.Delete(ctx, nil, storyID)
}

func (s *libraryService) CurrentStoryOutline(ctx context.Context, storyID uuid.UUID) (*types.StoryOutline, error) {
  return s.storyOutlines.GetCurrentForStory(ctx, nil, storyID)
}

func (s *libraryService) GetStoryOutline(ctx context.Context, outlineID uuid.UUID) (*types.StoryOutline, error) {
  return s.storyOutlines.GetByID(ctx, nil, outlineID)
}

func (s *libraryService) UpdateStoryOutline(ctx context.Context, outlineID uuid.UUID, in OutlineUpdateInput) (*types.StoryOutline, error) {
  fields := map[string]interface{}{}
  setIf(fields, "outline_onesentence", in.OutlineOnesentence)
  setIf(fields, "outline_mainevents_raw", in.OutlineMaineventsRaw)
  setIf(fields, "outline_mainevents_improved", in.OutlineMaineventsImproved)
  setIf(fields, "outline_paragraphs", in.OutlineParagraphs)
  setIf(fields, "fact_sheets", in.FactSheets)
  setIf(fields, "characters", in.Characters)
  if len(fields) == 0 {
    return s.storyOutlines.GetByID(ctx, nil, outlineID)
  }
  fields["modified"] = true
  if err := s.storyOutlines.UpdateFields(ctx, nil, outlineID, fields); err != nil {
    return nil, err
  }
  return s.storyOutlines.GetByID(ctx, nil, outlineID)
}

func (s *libraryService) ChaptersForOutline(ctx context.Context, outlineID uuid.UUID) ([]*types.ChapterOutline, error) {
  return s.chapterOutlines.GetCurrentForStoryOutline(ctx, nil, outlineID)
}

func (s *libraryService) GetChapterOutline(ctx context.Context, chapterID uuid.UUID) (*types.ChapterOutline, error) {
  return s.chapterOutlines.GetByID(ctx, nil, chapterID)
}

func (s *libraryService) UpdateChapterOutline(ctx context.Context, chapterID uuid.UUID, in DraftUpdateInput) (*types.ChapterOutline, error) {
  fields := map[string]interface{}{}
  setIf(fields, "raw", in.Raw)
  setIf(fields, "improved", in.Improved)
  if len(fields) == 0 {
    return s.chapterOutlines.GetByID(ctx, nil, chapterID)
  }
  fields["modified"] = true
  if err := s.chapterOutlines.UpdateFields(ctx, nil, chapterID, fields); err != nil {
    return nil, err
  }
  return s.chapterOutlines.GetByID(ctx, nil, chapterID)
}

func (s *libraryService) SceneOutlinesForChapter(ctx context.Context, chapterID uuid.UUID) ([]*types.SceneOutline, error) {
  return s.sceneOutlines.GetCurrentForChapterOutline(ctx, nil, chapterID)
}

func (s *libraryService) GetSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID) (*types.SceneOutline, error) {
  return s.sceneOutlines.GetByID(ctx, nil, sceneOutlineID)
}

func (s *libraryService) UpdateSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID, in DraftUpdateInput) (*types.SceneOutline, error) {
  fields := map[string]interface{}{}
  setIf(fields, "raw", in.Raw)
  setIf(fields, "improved", in.Improved)
  if len(fields) == 0 {
    return s.sceneOutlines.GetByID(ctx, nil, sceneOutlineID)
  }
  fields["modified"] = true
  if err := s.sceneOutlines.UpdateFields(ctx, nil, sceneOutlineID, fields); err != nil {
    return nil, err
  }
  return s.sceneOutlines.GetByID(ctx, nil, sceneOutlineID)
}

func (s *libraryService) CurrentSceneForOutline(ctx context.Context, sceneOutlineID uuid.UUID) (*types.Scene, error) {
  return s.scenes.GetCurrentForSceneOutline(ctx, nil, sceneOutlineID)
}

func (s *libraryService) GetScene(ctx context.Context, sceneID uuid.UUID) (*types.Scene, error) {
  return s.scenes.GetByID(ctx, nil, sceneID)
}

func (s *libraryService) UpdateScene(ctx context.Context, sceneID uuid.UUID, in DraftUpdateInput) (*types.Scene, error) {
  fields := map[string]interface{}{}
  setIf(fields, "raw", in.Raw)
  setIf(fields, "improved", in.Improved)
  if len(fields) == 0 {
    return s.scenes.GetByID(ctx, nil, sceneID)
  }
  fields["modified"] = true
  if in.Improved != nil {
    // An edited draft recomputes the plain prose rendering.
    scene := &types.Scene{Improved: in.Improved}
    if text, err := scene.ImprovedText(); err == nil {
      fields["final_text"] = text
    }
  }
  if err := s.scenes.UpdateFields(ctx, nil, sceneID, fields); err != nil {
    return nil, err
  }
  return s.scenes.GetByID(ctx, nil, sceneID)
}

func (s *libraryService) StoryQueries(ctx context.Context, storyID uuid.UUID) ([]*types.Query, error) {
  return s.queries.ListForStory(ctx, nil, storyID)
}

func (s *libraryService) GetQuery(ctx context.Context, queryID uuid.UUID) (*types.Query, []*types.ApiCall, error) {
  query, err := s.queries.GetByID(ctx, nil, queryID)
  if err != nil {
    return nil, nil, err
  }
  calls, err := s.apiCalls.ListForQuery(ctx, nil, queryID)
  if err != nil {
    return nil, nil, fmt.Errorf("list api calls: %w", err)
  }
  return query, calls, nil
}

func setIf(fields map[string]interface{}, column string, value *string) {
  if value != nil {
    fields[column] = *value
  }
}
