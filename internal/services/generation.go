package services

import (
  "context"
  "encoding/json"
  "fmt"
  "sync"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/yungbote/storygen-backend/internal/clients/openai"
  "github.com/yungbote/storygen-backend/internal/config"
  "github.com/yungbote/storygen-backend/internal/formats"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/repos"
  "github.com/yungbote/storygen-backend/internal/sse"
  "github.com/yungbote/storygen-backend/internal/types"
)

// Step names emitted as midpoints while a stage runs.
const (
  StepOneSentenceOutline = "Generating One Sentence Outline"
  StepImprovedOutline    = "Generating Improved Outline"
  StepExpandedOutline    = "Generating Expanded Outline"
  StepParagraphOutline   = "Generating Paragraph Outline"
  StepCreatingOutline    = "Creating Outline"
  StepEditingOutline     = "Editing Outline"
  StepCreatingScene      = "Creating Scene"
  StepEditingScene       = "Editing Scene"
)

// stepRetries is the per-step retry budget on top of the first attempt. A
// step that still fails afterwards aborts the whole stage.
const stepRetries = 1

// Emitter receives stream events as a stage runs. A nil emitter is valid
// and discards everything.
type Emitter func(types.StreamEvent)

// GenerationService drives the five pipeline stages. Each method loads its
// entity, runs the stage's model steps, persists intermediate fields as they
// settle, materializes child rows, and emits chunk, midpoint and result
// events along the way.
type GenerationService interface {
  GenerateStory(ctx context.Context, storyID uuid.UUID, emit Emitter) (*types.Story, error)
  GenerateStoryOutline(ctx context.Context, outlineID uuid.UUID, emit Emitter) (*types.StoryOutline, error)
  GenerateChapterOutline(ctx context.Context, chapterID uuid.UUID, emit Emitter) (*types.ChapterOutline, error)
  GenerateSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID, emit Emitter) (*types.SceneOutline, error)
  GenerateSceneText(ctx context.Context, sceneID uuid.UUID, emit Emitter) (*types.Scene, error)
}

type generationService struct {
  cfg             *config.Config
  log             *logger.Logger
  executor        Executor
  hub             *sse.SSEHub
  locksMu         sync.Mutex
  locks           map[uuid.UUID]*entityLock
  stories         repos.StoryRepo
  storyOutlines   repos.StoryOutlineRepo
  chapterOutlines repos.ChapterOutlineRepo
  sceneOutlines   repos.SceneOutlineRepo
  scenes          repos.SceneRepo
}

func NewGenerationService(
  cfg *config.Config,
  baseLog *logger.Logger,
  exec Executor,
  hub *sse.SSEHub,
  stories repos.StoryRepo,
  storyOutlines repos.StoryOutlineRepo,
  chapterOutlines repos.ChapterOutlineRepo,
  sceneOutlines repos.SceneOutlineRepo,
  scenes repos.SceneRepo,
) GenerationService {
  svcLog := baseLog.With("service", "GenerationService")
  return &generationService{
    cfg:             cfg,
    log:             svcLog,
    executor:        exec,
    hub:             hub,
    locks:           make(map[uuid.UUID]*entityLock),
    stories:         stories,
    storyOutlines:   storyOutlines,
    chapterOutlines: chapterOutlines,
    sceneOutlines:   sceneOutlines,
    scenes:          scenes,
  }
}

// broadcast notifies other open sessions on the story's channel. The hub is
// optional; generation works without one.
func (g *generationService) broadcast(storyID uuid.UUID, event sse.SSEEvent, data any) {
  if g.hub == nil {
    return
  }
  g.hub.Broadcast(sse.SSEMessage{Channel: sse.StoryChannel(storyID), Event: event, Data: data})
}

// entityLock is refcounted so the table only holds entries for entities with
// a run in flight or waiting.
type entityLock struct {
  mu   sync.Mutex
  refs int
}

// lockEntity serializes regeneration per target entity so two concurrent
// requests cannot race the invalidate-then-insert step. Callers defer the
// returned unlock for the whole run; the last unlock drops the entry.
func (g *generationService) lockEntity(id uuid.UUID) func() {
  g.locksMu.Lock()
  l := g.locks[id]
  if l == nil {
    l = &entityLock{}
    g.locks[id] = l
  }
  l.refs++
  g.locksMu.Unlock()

  l.mu.Lock()
  return func() {
    l.mu.Unlock()
    g.locksMu.Lock()
    l.refs--
    if l.refs == 0 {
      delete(g.locks, id)
    }
    g.locksMu.Unlock()
  }
}

func send(emit Emitter, event types.StreamEvent) {
  if emit != nil {
    emit(event)
  }
}

// runStep executes one logical query and validates its output through
// parse. A failed attempt, whether a broken call or unparseable output,
// gets one same-step retry before the stage aborts.
func (g *generationService) runStep(ctx context.Context, step string, in ExecutorInput, emit Emitter, parse func(output string) error) (*ExecutorResult, error) {
  onDelta := func(delta string) {
    send(emit, types.ChunkEvent(delta))
  }

  var lastErr error
  for attempt := 0; attempt <= stepRetries; attempt++ {
    if attempt > 0 {
      g.log.Warn("retrying step", "step", step, "attempt", attempt+1, "error", lastErr)
    }
    result, err := g.executor.Run(ctx, in, onDelta)
    if err != nil {
      if ctx.Err() != nil {
        return nil, &OrchestrationError{Step: step, Err: ctx.Err()}
      }
      lastErr = err
      continue
    }
    if err := parse(result.Output); err != nil {
      lastErr = err
      continue
    }
    return result, nil
  }
  return nil, &OrchestrationError{Step: step, Err: lastErr}
}

// previousTurns strips the leading system message so a follow-up step can
// replay the conversation under a fresh system prompt.
func previousTurns(result *ExecutorResult) []openai.Message {
  if result == nil || len(result.Messages) == 0 {
    return nil
  }
  if result.Messages[0].Role == openai.RoleSystem {
    return result.Messages[1:]
  }
  return result.Messages
}

func marshalTags(tags []string) datatypes.JSON {
  if tags == nil {
    tags = []string{}
  }
  raw, err := json.Marshal(tags)
  if err != nil {
    return datatypes.JSON([]byte("[]"))
  }
  return datatypes.JSON(raw)
}

func (g *generationService) GenerateStory(ctx context.Context, storyID uuid.UUID, emit Emitter) (*types.Story, error) {
  defer g.lockEntity(storyID)()

  story, err := g.stories.GetByID(ctx, nil, storyID)
  if err != nil {
    return nil, fmt.Errorf("load story: %w", err)
  }

  sysPrompt := SystemInstruction(SystemPromptInput{
    Description: story.Description,
    Style:       story.Style,
    Themes:      story.Themes,
    Request:     story.Request,
  })

  var base formats.StoryBase
  _, err = g.runStep(ctx, "story base", ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       StoryBasePrompt(),
    AuthorID:     story.AuthorID,
    Link:         QueryLink{StoryID: &story.ID},
  }, emit, func(output string) error {
    parsed, err := formats.ParseStoryBase(output)
    if err != nil {
      return err
    }
    base = parsed
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.stories.UpdateFields(ctx, nil, story.ID, map[string]interface{}{
    "setting":         base.Setting,
    "main_characters": base.MainCharacters,
    "summary":         base.Summary,
    "tags":            marshalTags(base.Tags),
    "modified":        false,
  }); err != nil {
    return nil, fmt.Errorf("save story base: %w", err)
  }

  // A fresh base invalidates any outline generated from the old one. A
  // stub outline is created up front so the user can request the next
  // stage directly.
  if err := g.storyOutlines.InvalidateForStory(ctx, nil, story.ID); err != nil {
    return nil, fmt.Errorf("invalidate story outlines: %w", err)
  }
  if _, err := g.storyOutlines.Create(ctx, nil, []*types.StoryOutline{{
    StoryID:  story.ID,
    AuthorID: story.AuthorID,
  }}); err != nil {
    return nil, fmt.Errorf("create outline stub: %w", err)
  }

  story, err = g.stories.GetByID(ctx, nil, story.ID)
  if err != nil {
    return nil, fmt.Errorf("reload story: %w", err)
  }
  send(emit, types.ResultEvent(story))
  g.broadcast(story.ID, sse.SSEEventStoryUpdated, story)
  return story, nil
}

func (g *generationService) GenerateStoryOutline(ctx context.Context, outlineID uuid.UUID, emit Emitter) (*types.StoryOutline, error) {
  defer g.lockEntity(outlineID)()

  outline, err := g.storyOutlines.GetByID(ctx, nil, outlineID)
  if err != nil {
    return nil, fmt.Errorf("load story outline: %w", err)
  }
  story, err := g.stories.GetByID(ctx, nil, outline.StoryID)
  if err != nil {
    return nil, fmt.Errorf("load story: %w", err)
  }

  sysPrompt := SystemInstruction(SystemPromptInput{
    Description:    story.Description,
    Style:          story.Style,
    Themes:         story.Themes,
    Request:        story.Request,
    Setting:        deref(story.Setting),
    MainCharacters: deref(story.MainCharacters),
    Summary:        deref(story.Summary),
  })
  link := QueryLink{StoryID: &story.ID, StoryOutlineID: &outline.ID}

  // Step 1: one sentence per chapter.
  send(emit, types.MidPointEvent(StepOneSentenceOutline))

  var sections map[string]string
  step1, err := g.runStep(ctx, StepOneSentenceOutline, ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       StoryOutlineStep1Prompt(),
    AuthorID:     outline.AuthorID,
    Link:         link,
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseOutlineSimple(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.storyOutlines.UpdateFields(ctx, nil, outline.ID, map[string]interface{}{
    "outline_onesentence": sections["outline"],
  }); err != nil {
    return nil, fmt.Errorf("save one sentence outline: %w", err)
  }

  // Step 2: main events per chapter, continuing the same conversation.
  send(emit, types.MidPointEvent(StepImprovedOutline))

  step2, err := g.runStep(ctx, StepImprovedOutline, ExecutorInput{
    SystemPrompt:     sysPrompt,
    Prompt:           StoryOutlineStep2Prompt(),
    AuthorID:         outline.AuthorID,
    Link:             link,
    PreviousMessages: previousTurns(step1),
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseOutlineMedium(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.storyOutlines.UpdateFields(ctx, nil, outline.ID, map[string]interface{}{
    "outline_mainevents_raw": sections["outline"],
  }); err != nil {
    return nil, fmt.Errorf("save main events outline: %w", err)
  }

  // Step 3: editing pass over the main events outline.
  send(emit, types.MidPointEvent(StepExpandedOutline))

  step3, err := g.runStep(ctx, StepExpandedOutline, ExecutorInput{
    SystemPrompt:     sysPrompt,
    Prompt:           StoryOutlineStep3Prompt(),
    AuthorID:         outline.AuthorID,
    Link:             link,
    PreviousMessages: previousTurns(step2),
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "editing_notes", "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseOutlineMedium(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  fields := map[string]interface{}{
    "editing_notes":               sections["editing_notes"],
    "outline_mainevents_improved": sections["outline"],
  }
  if g.cfg.SkipParagraphStep {
    fields["outline_paragraphs"] = sections["outline"]
  }
  if err := g.storyOutlines.UpdateFields(ctx, nil, outline.ID, fields); err != nil {
    return nil, fmt.Errorf("save improved outline: %w", err)
  }

  // Step 4: paragraph expansion plus factsheet and character reference.
  // Skipped by default to halve the cost of the stage.
  if !g.cfg.SkipParagraphStep {
    send(emit, types.MidPointEvent(StepParagraphOutline))

    _, err := g.runStep(ctx, StepParagraphOutline, ExecutorInput{
      SystemPrompt:     sysPrompt,
      Prompt:           StoryOutlineStep4Prompt(),
      AuthorID:         outline.AuthorID,
      Link:             link,
      PreviousMessages: previousTurns(step3),
    }, emit, func(output string) error {
      splits := formats.SplitSections(output)
      if err := formats.RequireSections(splits, "outline", "factsheet", "characters"); err != nil {
        return err
      }
      if _, err := formats.ParseOutlineComplex(splits["outline"]); err != nil {
        return err
      }
      sections = splits
      return nil
    })
    if err != nil {
      return nil, err
    }

    if err := g.storyOutlines.UpdateFields(ctx, nil, outline.ID, map[string]interface{}{
      "outline_paragraphs": sections["outline"],
      "fact_sheets":        sections["factsheet"],
      "characters":         sections["characters"],
    }); err != nil {
      return nil, fmt.Errorf("save paragraph outline: %w", err)
    }
  }

  outline, err = g.storyOutlines.GetByID(ctx, nil, outline.ID)
  if err != nil {
    return nil, fmt.Errorf("reload story outline: %w", err)
  }

  if err := g.materializeChapters(ctx, outline); err != nil {
    return nil, err
  }
  if err := g.stories.UpdateFields(ctx, nil, story.ID, map[string]interface{}{"modified": false}); err != nil {
    return nil, fmt.Errorf("clear story modified flag: %w", err)
  }

  send(emit, types.ResultEvent(outline))
  g.broadcast(story.ID, sse.SSEEventStoryOutlineUpdated, outline)
  return outline, nil
}

// materializeChapters replaces the outline's chapter rows with rows parsed
// from the settled paragraph outline, chained through previous_chapter_id in
// story order.
func (g *generationService) materializeChapters(ctx context.Context, outline *types.StoryOutline) error {
  records, err := outline.ChapterList()
  if err != nil {
    return &OrchestrationError{Step: "materialize chapters", Err: err}
  }

  if err := g.chapterOutlines.InvalidateForStoryOutline(ctx, nil, outline.ID); err != nil {
    return fmt.Errorf("invalidate chapters: %w", err)
  }

  chapters := make([]*types.ChapterOutline, 0, len(records))
  var previousID *uuid.UUID
  for _, rec := range records {
    chapter := &types.ChapterOutline{
      ID:                uuid.New(),
      StoryOutlineID:    outline.ID,
      AuthorID:          outline.AuthorID,
      PreviousChapterID: previousID,
      ChapterNumber:     rec.Number,
      PartLabel:         rec.PartLabel,
      Title:             rec.Title,
      Purpose:           rec.Purpose,
      MainEvents:        rec.MainEvents,
      ChapterSummary:    rec.Summary,
      ChapterNotes:      rec.Notes,
    }
    id := chapter.ID
    previousID = &id
    chapters = append(chapters, chapter)
  }
  if _, err := g.chapterOutlines.Create(ctx, nil, chapters); err != nil {
    return fmt.Errorf("create chapters: %w", err)
  }
  return nil
}

func (g *generationService) GenerateChapterOutline(ctx context.Context, chapterID uuid.UUID, emit Emitter) (*types.ChapterOutline, error) {
  defer g.lockEntity(chapterID)()

  chapter, err := g.chapterOutlines.GetByID(ctx, nil, chapterID)
  if err != nil {
    return nil, fmt.Errorf("load chapter outline: %w", err)
  }
  outline, err := g.storyOutlines.GetByID(ctx, nil, chapter.StoryOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load story outline: %w", err)
  }
  story, err := g.stories.GetByID(ctx, nil, outline.StoryID)
  if err != nil {
    return nil, fmt.Errorf("load story: %w", err)
  }

  send(emit, types.MidPointEvent(StepCreatingOutline))

  sysPrompt := SystemInstruction(SystemPromptInput{
    Description:    story.Description,
    Style:          story.Style,
    Themes:         story.Themes,
    Request:        story.Request,
    Setting:        deref(story.Setting),
    MainCharacters: deref(story.MainCharacters),
    Summary:        deref(story.Summary),
    Outline:        outline.ComputedOutline(),
  })
  link := QueryLink{StoryID: &story.ID, ChapterOutlineID: &chapter.ID}
  promptInput := ChapterPromptInput{
    ChapterNumber: chapter.ChapterNumber,
    Title:         chapter.Title,
    Purpose:       chapter.Purpose,
    Summary:       chapter.ChapterSummary,
    MainEvents:    chapter.MainEvents,
    ChapterNotes:  chapter.ChapterNotes,
  }

  var sections map[string]string
  step1, err := g.runStep(ctx, StepCreatingOutline, ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       ChapterOutlineStep1Prompt(promptInput),
    AuthorID:     chapter.AuthorID,
    Link:         link,
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseChapterOutline(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.chapterOutlines.UpdateFields(ctx, nil, chapter.ID, map[string]interface{}{
    "raw": sections["outline"],
  }); err != nil {
    return nil, fmt.Errorf("save raw chapter outline: %w", err)
  }

  send(emit, types.MidPointEvent(StepEditingOutline))

  _, err = g.runStep(ctx, StepEditingOutline, ExecutorInput{
    SystemPrompt:     sysPrompt,
    Prompt:           ChapterOutlineStep2Prompt(promptInput),
    AuthorID:         chapter.AuthorID,
    Link:             link,
    PreviousMessages: previousTurns(step1),
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "editing_notes", "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseChapterOutline(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.chapterOutlines.UpdateFields(ctx, nil, chapter.ID, map[string]interface{}{
    "edit_notes": sections["editing_notes"],
    "improved":   sections["outline"],
    "modified":   false,
  }); err != nil {
    return nil, fmt.Errorf("save improved chapter outline: %w", err)
  }

  chapter, err = g.chapterOutlines.GetByID(ctx, nil, chapter.ID)
  if err != nil {
    return nil, fmt.Errorf("reload chapter outline: %w", err)
  }

  if err := g.materializeSceneOutlines(ctx, chapter); err != nil {
    return nil, err
  }

  send(emit, types.ResultEvent(chapter))
  g.broadcast(story.ID, sse.SSEEventChapterOutlineUpdated, chapter)
  return chapter, nil
}

func (g *generationService) materializeSceneOutlines(ctx context.Context, chapter *types.ChapterOutline) error {
  records, err := chapter.ImprovedParsed()
  if err != nil {
    return &OrchestrationError{Step: "materialize scene outlines", Err: err}
  }

  if err := g.sceneOutlines.InvalidateForChapterOutline(ctx, nil, chapter.ID); err != nil {
    return fmt.Errorf("invalidate scene outlines: %w", err)
  }

  sceneOutlines := make([]*types.SceneOutline, 0, len(records))
  var previousID *uuid.UUID
  for _, rec := range records {
    so := &types.SceneOutline{
      ID:                uuid.New(),
      ChapterOutlineID:  chapter.ID,
      AuthorID:          chapter.AuthorID,
      PreviousSceneID:   previousID,
      SceneNumber:       rec.Number,
      Setting:           rec.Setting,
      PrimaryFunction:   rec.PrimaryFunction,
      SecondaryFunction: rec.SecondaryFunction,
      Summary:           rec.Summary,
      Context:           rec.Context,
    }
    id := so.ID
    previousID = &id
    sceneOutlines = append(sceneOutlines, so)
  }
  if _, err := g.sceneOutlines.Create(ctx, nil, sceneOutlines); err != nil {
    return fmt.Errorf("create scene outlines: %w", err)
  }
  return nil
}

func (g *generationService) GenerateSceneOutline(ctx context.Context, sceneOutlineID uuid.UUID, emit Emitter) (*types.SceneOutline, error) {
  defer g.lockEntity(sceneOutlineID)()

  sceneOutline, err := g.sceneOutlines.GetByID(ctx, nil, sceneOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load scene outline: %w", err)
  }
  chapter, err := g.chapterOutlines.GetByID(ctx, nil, sceneOutline.ChapterOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load chapter outline: %w", err)
  }
  outline, err := g.storyOutlines.GetByID(ctx, nil, chapter.StoryOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load story outline: %w", err)
  }
  story, err := g.stories.GetByID(ctx, nil, outline.StoryID)
  if err != nil {
    return nil, fmt.Errorf("load story: %w", err)
  }

  if chapter.Improved == nil {
    return nil, &OrchestrationError{Step: StepCreatingOutline, Err: fmt.Errorf("chapter outline must be generated before its scene outlines")}
  }

  send(emit, types.MidPointEvent(StepCreatingOutline))

  sysPrompt := SystemInstruction(SystemPromptInput{
    Description:    story.Description,
    Style:          story.Style,
    Themes:         story.Themes,
    Request:        story.Request,
    Setting:        deref(story.Setting),
    MainCharacters: deref(story.MainCharacters),
    Summary:        deref(story.Summary),
    Outline:        outline.ComputedOutline(),
  })
  link := QueryLink{StoryID: &story.ID, SceneOutlineID: &sceneOutline.ID}

  promptInput := ScenePromptInput{
    SceneNumber:       sceneOutline.SceneNumber,
    Setting:           sceneOutline.Setting,
    PrimaryFunction:   sceneOutline.PrimaryFunction,
    SecondaryFunction: sceneOutline.SecondaryFunction,
    Summary:           sceneOutline.Summary,
    Context:           sceneOutline.Context,
    ChapterOutline:    deref(chapter.Improved),
  }
  if sceneOutline.PreviousSceneID != nil {
    if prev, err := g.sceneOutlines.GetByID(ctx, nil, *sceneOutline.PreviousSceneID); err == nil {
      promptInput.PreviousSceneOutline = deref(prev.Improved)
    }
  }
  if chapter.PreviousChapterID != nil {
    if prevChapter, err := g.chapterOutlines.GetByID(ctx, nil, *chapter.PreviousChapterID); err == nil {
      promptInput.PreviousChapterOutline = deref(prevChapter.Improved)
    }
  }

  var sections map[string]string
  step1, err := g.runStep(ctx, StepCreatingOutline, ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       SceneOutlineStep1Prompt(promptInput),
    AuthorID:     sceneOutline.AuthorID,
    Link:         link,
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseSceneOutline(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.sceneOutlines.UpdateFields(ctx, nil, sceneOutline.ID, map[string]interface{}{
    "raw": sections["outline"],
  }); err != nil {
    return nil, fmt.Errorf("save raw scene outline: %w", err)
  }

  send(emit, types.MidPointEvent(StepEditingOutline))

  _, err = g.runStep(ctx, StepEditingOutline, ExecutorInput{
    SystemPrompt:     sysPrompt,
    Prompt:           SceneOutlineStep2Prompt(promptInput),
    AuthorID:         sceneOutline.AuthorID,
    Link:             link,
    PreviousMessages: previousTurns(step1),
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "editing_notes", "outline"); err != nil {
      return err
    }
    if _, err := formats.ParseSceneOutline(splits["outline"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.sceneOutlines.UpdateFields(ctx, nil, sceneOutline.ID, map[string]interface{}{
    "edit_notes": sections["editing_notes"],
    "improved":   sections["outline"],
    "modified":   false,
  }); err != nil {
    return nil, fmt.Errorf("save improved scene outline: %w", err)
  }

  sceneOutline, err = g.sceneOutlines.GetByID(ctx, nil, sceneOutline.ID)
  if err != nil {
    return nil, fmt.Errorf("reload scene outline: %w", err)
  }

  if err := g.createSceneStub(ctx, story, sceneOutline); err != nil {
    return nil, err
  }

  send(emit, types.ResultEvent(sceneOutline))
  g.broadcast(story.ID, sse.SSEEventSceneOutlineUpdated, sceneOutline)
  return sceneOutline, nil
}

// createSceneStub freezes the settled scene outline into a Scene row the
// text stage works from. The previous pointer goes through the prior scene
// outline's current scene so chapter text can be stitched in order.
func (g *generationService) createSceneStub(ctx context.Context, story *types.Story, sceneOutline *types.SceneOutline) error {
  if err := g.scenes.InvalidateForSceneOutline(ctx, nil, sceneOutline.ID); err != nil {
    return fmt.Errorf("invalidate scenes: %w", err)
  }

  var previousSceneID *uuid.UUID
  if sceneOutline.PreviousSceneID != nil {
    if prev, err := g.scenes.GetCurrentForSceneOutline(ctx, nil, *sceneOutline.PreviousSceneID); err == nil {
      previousSceneID = &prev.ID
    }
  }

  scene := &types.Scene{
    AuthorID:        story.AuthorID,
    SceneOutlineID:  sceneOutline.ID,
    PreviousSceneID: previousSceneID,
    SceneNumber:     sceneOutline.SceneNumber,
    Outline:         deref(sceneOutline.Improved),
  }
  if _, err := g.scenes.Create(ctx, nil, []*types.Scene{scene}); err != nil {
    return fmt.Errorf("create scene stub: %w", err)
  }
  return nil
}

func (g *generationService) GenerateSceneText(ctx context.Context, sceneID uuid.UUID, emit Emitter) (*types.Scene, error) {
  defer g.lockEntity(sceneID)()

  scene, err := g.scenes.GetByID(ctx, nil, sceneID)
  if err != nil {
    return nil, fmt.Errorf("load scene: %w", err)
  }
  sceneOutline, err := g.sceneOutlines.GetByID(ctx, nil, scene.SceneOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load scene outline: %w", err)
  }
  chapter, err := g.chapterOutlines.GetByID(ctx, nil, sceneOutline.ChapterOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load chapter outline: %w", err)
  }
  outline, err := g.storyOutlines.GetByID(ctx, nil, chapter.StoryOutlineID)
  if err != nil {
    return nil, fmt.Errorf("load story outline: %w", err)
  }
  story, err := g.stories.GetByID(ctx, nil, outline.StoryID)
  if err != nil {
    return nil, fmt.Errorf("load story: %w", err)
  }

  if chapter.Improved == nil || sceneOutline.Improved == nil {
    return nil, &OrchestrationError{Step: StepCreatingScene, Err: fmt.Errorf("chapter and scene outlines must be generated before scene text")}
  }

  send(emit, types.MidPointEvent(StepCreatingScene))

  sysPrompt := SystemInstruction(SystemPromptInput{
    Description:    story.Description,
    Style:          story.Style,
    Themes:         story.Themes,
    Request:        story.Request,
    Setting:        deref(story.Setting),
    MainCharacters: deref(story.MainCharacters),
    Summary:        deref(story.Summary),
    Outline:        outline.ComputedOutline(),
  })
  link := QueryLink{StoryID: &story.ID, SceneID: &scene.ID}

  promptInput := ScenePromptInput{
    SceneNumber:       sceneOutline.SceneNumber,
    Setting:           sceneOutline.Setting,
    PrimaryFunction:   sceneOutline.PrimaryFunction,
    SecondaryFunction: sceneOutline.SecondaryFunction,
    Summary:           sceneOutline.Summary,
    Context:           sceneOutline.Context,
    ChapterOutline:    deref(chapter.Improved),
    SceneOutline:      scene.Outline,
  }
  if chapter.PreviousChapterID != nil {
    if prevChapter, err := g.chapterOutlines.GetByID(ctx, nil, *chapter.PreviousChapterID); err == nil {
      promptInput.PreviousChapterOutline = deref(prevChapter.Improved)
    }
  }
  if scene.PreviousSceneID != nil {
    if prevScene, err := g.scenes.GetByID(ctx, nil, *scene.PreviousSceneID); err == nil {
      promptInput.PreviousSceneOutline = prevScene.Outline
      if text, err := prevScene.ImprovedText(); err == nil {
        promptInput.PreviousText = text
      }
    }
  }

  var sections map[string]string
  _, err = g.runStep(ctx, StepCreatingScene, ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       SceneTextStep1Prompt(promptInput),
    AuthorID:     scene.AuthorID,
    Link:         link,
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "scene"); err != nil {
      return err
    }
    if _, err := formats.ParseSceneText(splits["scene"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  if err := g.scenes.UpdateFields(ctx, nil, scene.ID, map[string]interface{}{
    "raw": sections["scene"],
  }); err != nil {
    return nil, fmt.Errorf("save raw scene: %w", err)
  }

  send(emit, types.MidPointEvent(StepEditingScene))

  // The editing pass gets the raw draft embedded in the prompt rather than
  // the step 1 conversation, which keeps the context window for long scenes.
  promptInput.SceneTextRaw = sections["scene"]

  _, err = g.runStep(ctx, StepEditingScene, ExecutorInput{
    SystemPrompt: sysPrompt,
    Prompt:       SceneTextStep2Prompt(promptInput),
    AuthorID:     scene.AuthorID,
    Link:         link,
  }, emit, func(output string) error {
    splits := formats.SplitSections(output)
    if err := formats.RequireSections(splits, "editing_notes", "scene"); err != nil {
      return err
    }
    if _, err := formats.ParseSceneText(splits["scene"]); err != nil {
      return err
    }
    sections = splits
    return nil
  })
  if err != nil {
    return nil, err
  }

  improved := sections["scene"]
  improvedSections, err := formats.ParseSceneText(improved)
  if err != nil {
    return nil, &OrchestrationError{Step: StepEditingScene, Err: err}
  }
  finalText := formats.JoinSectionText(improvedSections)

  if err := g.scenes.UpdateFields(ctx, nil, scene.ID, map[string]interface{}{
    "edit_notes": sections["editing_notes"],
    "improved":   improved,
    "final_text": finalText,
    "modified":   false,
  }); err != nil {
    return nil, fmt.Errorf("save improved scene: %w", err)
  }

  scene, err = g.scenes.GetByID(ctx, nil, scene.ID)
  if err != nil {
    return nil, fmt.Errorf("reload scene: %w", err)
  }

  send(emit, types.ResultEvent(scene))
  g.broadcast(story.ID, sse.SSEEventSceneUpdated, scene)
  return scene, nil
}

func deref(s *string) string {
  if s == nil {
    return ""
  }
  return *s
}
