package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storygen-backend/internal/clients/openai"
	"github.com/yungbote/storygen-backend/internal/config"
	"github.com/yungbote/storygen-backend/internal/repos"
	"github.com/yungbote/storygen-backend/internal/types"
)

const storyBaseResponse = `# Setting
A remote lighthouse island in the north Atlantic.

# Main Characters
Maren, the new keeper, carrying a grief she won't name.

# Summary
Maren takes the posting to disappear, but the light has other plans.

# Tags
mystery, literary, isolation`

const outlineSimpleResponse = `# Outline

### Chapter 1 — Arrival
Maren lands on the island and meets the departing keeper.
### Chapter 2 — The Signal
The light blinks in a pattern no tide table explains.`

const outlineMediumBody = `### Chapter 1 — Arrival
#### Chapter Purpose
Establish the island and Maren's isolation.
#### Main Events
- Maren lands by supply boat
- The departing keeper leaves a warning
#### Chapter Notes
Keep the tone quiet and watchful.
### Chapter 2 — The Signal
#### Chapter Purpose
Turn the routine into a mystery.
#### Main Events
- The light blinks in a repeating pattern
- Maren logs it and gets an answer
#### Chapter Notes
Foreshadow the reply from the sea.`

const outlineMediumResponse = "# Outline\n\n" + outlineMediumBody

const outlineImprovedResponse = `# Editing Notes
Tighten chapter two so the answer lands at the chapter break.

# Outline

` + outlineMediumBody

const chapterOutlineBody = `### Scene 1
#### Setting
The supply dock at dawn.
#### Primary Function
Introduce Maren.
#### Secondary Function
Seed the keeper's warning.
#### Summary
Maren steps off the boat into fog.
#### Context
She has not slept.
### Scene 2
#### Setting
The lamp room.
#### Primary Function
Reveal the pattern.
#### Secondary Function
None.
#### Summary
Maren times the blinks against the log.
#### Context
The pattern is older than the log.`

const chapterOutlineResponse = "# Outline\n\n" + chapterOutlineBody

const chapterOutlineImprovedResponse = `# Editing Notes
Give scene two a harder ending.

# Outline

` + chapterOutlineBody

const sceneOutlineBody = `## Scene 1
- Paragraph: Maren steps onto the dock in fog.
- Paragraph: The departing keeper watches her from the boat.
- Dialogue Placeholder: The keeper warns her about the light, refusing detail.`

const sceneOutlineResponse = "# Outline\n\n" + sceneOutlineBody

const sceneOutlineImprovedResponse = `# Editing Notes
Add blocking to the warning.

# Outline

` + sceneOutlineBody

const sceneTextResponse = `# Scene

### Paragraph Maren steps onto the dock in fog.
The fog took the island before Maren could. She stepped off the boat with one bag.
### Paragraph The departing keeper watches her from the boat.
Behind her, the old keeper did not help with the lines.
### Dialogue The keeper warns her about the light.
"Count the blinks," he said. "If they count back, don't answer."`

const sceneTextImprovedResponse = `# Editing Notes
Sharpen the final line of dialogue.

# Scene

### Paragraph Maren steps onto the dock in fog.
The fog took the island before Maren could. She stepped off the boat with one bag and no plans to fill it again.
### Dialogue The keeper warns her about the light.
"Count the blinks," he said. "If they count back, douse the lamp and wait for morning."`

type harness struct {
	db     *gorm.DB
	cfg    *config.Config
	client *fakeClient
	svc    GenerationService

	stories         repos.StoryRepo
	storyOutlines   repos.StoryOutlineRepo
	chapterOutlines repos.ChapterOutlineRepo
	sceneOutlines   repos.SceneOutlineRepo
	scenes          repos.SceneRepo
}

func newHarness(t *testing.T, script []scriptedCall) *harness {
	t.Helper()
	db, log := serviceTestDB(t)
	cfg := testConfig()
	client := &fakeClient{script: script}

	stories := repos.NewStoryRepo(db, log)
	storyOutlines := repos.NewStoryOutlineRepo(db, log)
	chapterOutlines := repos.NewChapterOutlineRepo(db, log)
	sceneOutlines := repos.NewSceneOutlineRepo(db, log)
	scenes := repos.NewSceneRepo(db, log)
	queries := repos.NewQueryRepo(db, log)
	apiCalls := repos.NewApiCallRepo(db, log)

	exec := NewExecutor(cfg, log, client, queries, apiCalls, repos.NewUserRepo(db, log))
	svc := NewGenerationService(cfg, log, exec, nil, stories, storyOutlines, chapterOutlines, sceneOutlines, scenes)

	return &harness{
		db:              db,
		cfg:             cfg,
		client:          client,
		svc:             svc,
		stories:         stories,
		storyOutlines:   storyOutlines,
		chapterOutlines: chapterOutlines,
		sceneOutlines:   sceneOutlines,
		scenes:          scenes,
	}
}

func (h *harness) seedStory(t *testing.T, withBase bool) *types.Story {
	t.Helper()
	story := &types.Story{
		Title:       "The Lighthouse",
		Description: "A keeper discovers the light is signaling someone.",
		Style:       "literary mystery",
		Themes:      "isolation, grief",
		Request:     "slow burn",
		Modified:    true,
	}
	if withBase {
		setting := "A lighthouse island."
		characters := "Maren, the keeper."
		summary := "The light answers back."
		story.Setting = &setting
		story.MainCharacters = &characters
		story.Summary = &summary
	}
	if _, err := h.stories.Create(context.Background(), nil, []*types.Story{story}); err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story
}

func stop(text string) scriptedCall {
	return scriptedCall{res: openai.StreamResult{Text: text, FinishReason: openai.FinishStop}}
}

type eventLog struct {
	chunks    int
	midpoints []string
	results   int
}

func (l *eventLog) emit(e types.StreamEvent) {
	switch e.Kind {
	case types.StreamChunk:
		l.chunks++
	case types.StreamMidPoint:
		l.midpoints = append(l.midpoints, e.StepName)
	case types.StreamResult:
		l.results++
	}
}

func TestGenerateStoryFillsBaseAndCreatesOutlineStub(t *testing.T) {
	h := newHarness(t, []scriptedCall{stop(storyBaseResponse)})
	story := h.seedStory(t, false)

	var events eventLog
	got, err := h.svc.GenerateStory(context.Background(), story.ID, events.emit)
	if err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}

	if got.Setting == nil || !strings.Contains(*got.Setting, "north Atlantic") {
		t.Fatalf("setting = %v", got.Setting)
	}
	if got.Modified {
		t.Fatal("modified flag should clear after generation")
	}
	tags := got.TagList()
	if len(tags) != 3 || tags[0] != "mystery" {
		t.Fatalf("tags = %v", tags)
	}

	outline, err := h.storyOutlines.GetCurrentForStory(context.Background(), nil, story.ID)
	if err != nil {
		t.Fatalf("outline stub: %v", err)
	}
	if outline.OutlineOnesentence != nil {
		t.Fatal("stub outline should be empty")
	}

	if events.chunks == 0 || events.results != 1 {
		t.Fatalf("events = %+v", events)
	}
}

func TestGenerateStoryRetriesOnceOnParsingError(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop("this is not the format"),
		stop(storyBaseResponse),
	})
	story := h.seedStory(t, false)

	if _, err := h.svc.GenerateStory(context.Background(), story.ID, nil); err != nil {
		t.Fatalf("GenerateStory: %v", err)
	}
	if len(h.client.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(h.client.calls))
	}
}

func TestGenerateStoryFatalAfterSecondParsingError(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop("still not the format"),
		stop("and again"),
	})
	story := h.seedStory(t, false)

	var events eventLog
	_, err := h.svc.GenerateStory(context.Background(), story.ID, events.emit)
	if err == nil {
		t.Fatal("expected error")
	}
	var oErr *OrchestrationError
	if !errors.As(err, &oErr) {
		t.Fatalf("error type = %T", err)
	}
	if events.results != 0 {
		t.Fatal("failed run must not emit a result")
	}
}

func TestGenerateStoryOutlineRunsStepsAndMaterializesChapters(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop(outlineSimpleResponse),
		stop(outlineMediumResponse),
		stop(outlineImprovedResponse),
	})
	story := h.seedStory(t, true)
	seeded, err := h.storyOutlines.Create(context.Background(), nil, []*types.StoryOutline{{StoryID: story.ID}})
	if err != nil {
		t.Fatalf("seed outline: %v", err)
	}

	var events eventLog
	outline, err := h.svc.GenerateStoryOutline(context.Background(), seeded[0].ID, events.emit)
	if err != nil {
		t.Fatalf("GenerateStoryOutline: %v", err)
	}

	if outline.OutlineOnesentence == nil || !strings.Contains(*outline.OutlineOnesentence, "Chapter 1") {
		t.Fatalf("onesentence = %v", outline.OutlineOnesentence)
	}
	if outline.EditingNotes == nil || !strings.Contains(*outline.EditingNotes, "Tighten") {
		t.Fatalf("editing notes = %v", outline.EditingNotes)
	}
	// SkipParagraphStep copies the improved outline forward.
	if outline.OutlineParagraphs == nil || *outline.OutlineParagraphs != *outline.OutlineMaineventsImproved {
		t.Fatal("paragraph outline should mirror the improved outline when step 4 is skipped")
	}

	wantSteps := []string{StepOneSentenceOutline, StepImprovedOutline, StepExpandedOutline}
	if len(events.midpoints) != len(wantSteps) {
		t.Fatalf("midpoints = %v", events.midpoints)
	}
	for i, want := range wantSteps {
		if events.midpoints[i] != want {
			t.Fatalf("midpoint %d = %q, want %q", i, events.midpoints[i], want)
		}
	}

	chapters, err := h.chapterOutlines.GetCurrentForStoryOutline(context.Background(), nil, outline.ID)
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("chapters = %d", len(chapters))
	}
	if chapters[0].Title != "Arrival" || chapters[1].Title != "The Signal" {
		t.Fatalf("titles = %q, %q", chapters[0].Title, chapters[1].Title)
	}
	if chapters[1].PreviousChapterID == nil || *chapters[1].PreviousChapterID != chapters[0].ID {
		t.Fatal("chapter chain broken")
	}

	// A second step in the same conversation carries the first exchange.
	if len(h.client.calls) != 3 {
		t.Fatalf("calls = %d", len(h.client.calls))
	}
	secondCall := h.client.calls[1]
	if len(secondCall) != 4 || secondCall[2].Role != openai.RoleAssistant {
		t.Fatalf("second call transcript = %d messages", len(secondCall))
	}
}

func TestGenerateStoryOutlineRegenerationInvalidatesOldChapters(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop(outlineSimpleResponse),
		stop(outlineMediumResponse),
		stop(outlineImprovedResponse),
		stop(outlineSimpleResponse),
		stop(outlineMediumResponse),
		stop(outlineImprovedResponse),
	})
	story := h.seedStory(t, true)
	seeded, err := h.storyOutlines.Create(context.Background(), nil, []*types.StoryOutline{{StoryID: story.ID}})
	if err != nil {
		t.Fatalf("seed outline: %v", err)
	}

	if _, err := h.svc.GenerateStoryOutline(context.Background(), seeded[0].ID, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := h.svc.GenerateStoryOutline(context.Background(), seeded[0].ID, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}

	current, err := h.chapterOutlines.GetCurrentForStoryOutline(context.Background(), nil, seeded[0].ID)
	if err != nil {
		t.Fatalf("chapters: %v", err)
	}
	if len(current) != 2 {
		t.Fatalf("current chapters = %d, want 2", len(current))
	}

	var total int64
	if err := h.db.Model(&types.ChapterOutline{}).Where("story_outline_id = ?", seeded[0].ID).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 4 {
		t.Fatalf("total chapters = %d, want 4 with 2 invalidated", total)
	}
}

func TestGenerateChapterOutlineMaterializesSceneOutlines(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop(chapterOutlineResponse),
		stop(chapterOutlineImprovedResponse),
	})
	story := h.seedStory(t, true)
	paragraphs := outlineMediumBody
	outlines, err := h.storyOutlines.Create(context.Background(), nil, []*types.StoryOutline{{
		StoryID:           story.ID,
		OutlineParagraphs: &paragraphs,
	}})
	if err != nil {
		t.Fatalf("seed outline: %v", err)
	}
	chapters, err := h.chapterOutlines.Create(context.Background(), nil, []*types.ChapterOutline{{
		StoryOutlineID: outlines[0].ID,
		ChapterNumber:  1,
		Title:          "Arrival",
		Purpose:        "Establish the island.",
		MainEvents:     "- Maren lands by supply boat",
		ChapterNotes:   "Quiet and watchful.",
	}})
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}

	var events eventLog
	chapter, err := h.svc.GenerateChapterOutline(context.Background(), chapters[0].ID, events.emit)
	if err != nil {
		t.Fatalf("GenerateChapterOutline: %v", err)
	}

	if chapter.Raw == nil || chapter.Improved == nil {
		t.Fatal("raw and improved outlines should be set")
	}
	if chapter.EditNotes == nil || !strings.Contains(*chapter.EditNotes, "harder ending") {
		t.Fatalf("edit notes = %v", chapter.EditNotes)
	}

	scenes, err := h.sceneOutlines.GetCurrentForChapterOutline(context.Background(), nil, chapter.ID)
	if err != nil {
		t.Fatalf("scene outlines: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("scene outlines = %d", len(scenes))
	}
	if scenes[0].Setting != "The supply dock at dawn." {
		t.Fatalf("scene 1 setting = %q", scenes[0].Setting)
	}
	if scenes[1].PreviousSceneID == nil || *scenes[1].PreviousSceneID != scenes[0].ID {
		t.Fatal("scene chain broken")
	}

	wantSteps := []string{StepCreatingOutline, StepEditingOutline}
	if len(events.midpoints) != 2 || events.midpoints[0] != wantSteps[0] || events.midpoints[1] != wantSteps[1] {
		t.Fatalf("midpoints = %v", events.midpoints)
	}
}

func TestGenerateSceneOutlineCreatesSceneStub(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop(sceneOutlineResponse),
		stop(sceneOutlineImprovedResponse),
	})
	story := h.seedStory(t, true)
	outlines, err := h.storyOutlines.Create(context.Background(), nil, []*types.StoryOutline{{StoryID: story.ID}})
	if err != nil {
		t.Fatalf("seed outline: %v", err)
	}
	improved := chapterOutlineBody
	chapters, err := h.chapterOutlines.Create(context.Background(), nil, []*types.ChapterOutline{{
		StoryOutlineID: outlines[0].ID,
		ChapterNumber:  1,
		Title:          "Arrival",
		Improved:       &improved,
	}})
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	sceneOutlines, err := h.sceneOutlines.Create(context.Background(), nil, []*types.SceneOutline{{
		ChapterOutlineID: chapters[0].ID,
		SceneNumber:      1,
		Setting:          "The supply dock at dawn.",
		PrimaryFunction:  "Introduce Maren.",
		Summary:          "Maren steps off the boat into fog.",
		Context:          "She has not slept.",
	}})
	if err != nil {
		t.Fatalf("seed scene outline: %v", err)
	}

	got, err := h.svc.GenerateSceneOutline(context.Background(), sceneOutlines[0].ID, nil)
	if err != nil {
		t.Fatalf("GenerateSceneOutline: %v", err)
	}
	if got.Improved == nil || !strings.Contains(*got.Improved, "Dialogue Placeholder") {
		t.Fatalf("improved = %v", got.Improved)
	}

	scene, err := h.scenes.GetCurrentForSceneOutline(context.Background(), nil, got.ID)
	if err != nil {
		t.Fatalf("scene stub: %v", err)
	}
	if scene.Outline != *got.Improved {
		t.Fatal("scene stub should freeze the improved outline")
	}
	if scene.Raw != nil || scene.FinalText != nil {
		t.Fatal("scene stub should have no text yet")
	}
}

func TestGenerateSceneTextProducesFinalText(t *testing.T) {
	h := newHarness(t, []scriptedCall{
		stop(sceneTextResponse),
		stop(sceneTextImprovedResponse),
	})
	story := h.seedStory(t, true)
	outlines, err := h.storyOutlines.Create(context.Background(), nil, []*types.StoryOutline{{StoryID: story.ID}})
	if err != nil {
		t.Fatalf("seed outline: %v", err)
	}
	improvedChapter := chapterOutlineBody
	chapters, err := h.chapterOutlines.Create(context.Background(), nil, []*types.ChapterOutline{{
		StoryOutlineID: outlines[0].ID,
		ChapterNumber:  1,
		Title:          "Arrival",
		Improved:       &improvedChapter,
	}})
	if err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	improvedScene := sceneOutlineBody
	sceneOutlines, err := h.sceneOutlines.Create(context.Background(), nil, []*types.SceneOutline{{
		ChapterOutlineID: chapters[0].ID,
		SceneNumber:      1,
		Setting:          "The supply dock at dawn.",
		PrimaryFunction:  "Introduce Maren.",
		Summary:          "Maren steps off the boat into fog.",
		Context:          "She has not slept.",
		Improved:         &improvedScene,
	}})
	if err != nil {
		t.Fatalf("seed scene outline: %v", err)
	}
	scenes, err := h.scenes.Create(context.Background(), nil, []*types.Scene{{
		SceneOutlineID: sceneOutlines[0].ID,
		SceneNumber:    1,
		Outline:        improvedScene,
	}})
	if err != nil {
		t.Fatalf("seed scene: %v", err)
	}

	var events eventLog
	scene, err := h.svc.GenerateSceneText(context.Background(), scenes[0].ID, events.emit)
	if err != nil {
		t.Fatalf("GenerateSceneText: %v", err)
	}

	if scene.Raw == nil || !strings.Contains(*scene.Raw, "The fog took the island") {
		t.Fatalf("raw = %v", scene.Raw)
	}
	if scene.EditNotes == nil || !strings.Contains(*scene.EditNotes, "Sharpen") {
		t.Fatalf("edit notes = %v", scene.EditNotes)
	}
	if scene.FinalText == nil {
		t.Fatal("final text missing")
	}
	// Final text is the joined section bodies, headings stripped.
	if strings.Contains(*scene.FinalText, "### ") {
		t.Fatalf("final text keeps headings: %q", *scene.FinalText)
	}
	if !strings.Contains(*scene.FinalText, "douse the lamp") {
		t.Fatalf("final text = %q", *scene.FinalText)
	}

	wantSteps := []string{StepCreatingScene, StepEditingScene}
	if len(events.midpoints) != 2 || events.midpoints[0] != wantSteps[0] || events.midpoints[1] != wantSteps[1] {
		t.Fatalf("midpoints = %v", events.midpoints)
	}
	if events.results != 1 {
		t.Fatalf("results = %d", events.results)
	}
}

func TestLockEntityDropsEntryAfterLastUnlock(t *testing.T) {
	g := &generationService{locks: make(map[uuid.UUID]*entityLock)}
	id := uuid.New()

	unlock := g.lockEntity(id)

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		u := g.lockEntity(id)
		close(acquired)
		u()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second caller acquired a held lock")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("second caller never finished")
	}

	g.locksMu.Lock()
	remaining := len(g.locks)
	g.locksMu.Unlock()
	if remaining != 0 {
		t.Fatalf("lock table entries = %d, want 0", remaining)
	}
}
