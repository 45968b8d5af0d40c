package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/storygen-backend/internal/pkg/logger"
	"github.com/yungbote/storygen-backend/internal/repos"
	"github.com/yungbote/storygen-backend/internal/types"
)

func newLibrary(t *testing.T) (LibraryService, *gorm.DB, *logger.Logger) {
	t.Helper()
	db, log := serviceTestDB(t)
	svc := NewLibraryService(
		log,
		repos.NewUserRepo(db, log),
		repos.NewStoryRepo(db, log),
		repos.NewStoryOutlineRepo(db, log),
		repos.NewChapterOutlineRepo(db, log),
		repos.NewSceneOutlineRepo(db, log),
		repos.NewSceneRepo(db, log),
		repos.NewQueryRepo(db, log),
		repos.NewApiCallRepo(db, log),
	)
	return svc, db, log
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	svc, _, _ := newLibrary(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, UserCreateInput{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.ID == (uuid.UUID{}) {
		t.Fatal("user id not assigned")
	}

	got, err := svc.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Email != "ada@example.com" {
		t.Fatalf("email = %q", got.Email)
	}

	if _, err := svc.CreateUser(ctx, UserCreateInput{Name: "Other", Email: "ada@example.com"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("duplicate email err = %v, want ErrEmailTaken", err)
	}
}

func TestUpdateStoryMarksModified(t *testing.T) {
	svc, db, _ := newLibrary(t)
	ctx := context.Background()

	story := &types.Story{Title: "Driftwood", Description: "a fox in a forest", Style: "children's fantasy", Themes: "friendship"}
	if err := db.Create(story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}

	title := "Driftwood, Revised"
	updated, err := svc.UpdateStory(ctx, story.ID, StoryUpdateInput{Title: &title})
	if err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}
	if updated.Title != title {
		t.Fatalf("title = %q", updated.Title)
	}
	if !updated.Modified {
		t.Fatal("story not marked modified")
	}

	// An empty update is a no-op and must not flip the flag.
	fresh := &types.Story{Title: "Untouched", Description: "d", Style: "s", Themes: "t"}
	if err := db.Create(fresh).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	same, err := svc.UpdateStory(ctx, fresh.ID, StoryUpdateInput{})
	if err != nil {
		t.Fatalf("UpdateStory: %v", err)
	}
	if same.Modified {
		t.Fatal("empty update marked story modified")
	}
}

func TestUpdateSceneRecomputesFinalText(t *testing.T) {
	svc, db, _ := newLibrary(t)
	ctx := context.Background()

	story := &types.Story{Title: "T", Description: "d", Style: "s", Themes: "t"}
	if err := db.Create(story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	outline := &types.StoryOutline{StoryID: story.ID}
	if err := db.Create(outline).Error; err != nil {
		t.Fatalf("seed outline: %v", err)
	}
	chapter := &types.ChapterOutline{StoryOutlineID: outline.ID, ChapterNumber: 1, Title: "One"}
	if err := db.Create(chapter).Error; err != nil {
		t.Fatalf("seed chapter: %v", err)
	}
	sceneOutline := &types.SceneOutline{ChapterOutlineID: chapter.ID, SceneNumber: 1}
	if err := db.Create(sceneOutline).Error; err != nil {
		t.Fatalf("seed scene outline: %v", err)
	}
	scene := &types.Scene{SceneOutlineID: sceneOutline.ID, SceneNumber: 1}
	if err := db.Create(scene).Error; err != nil {
		t.Fatalf("seed scene: %v", err)
	}

	improved := "### Paragraph: She leaves\nShe walked out into the rain.\n\n### Dialogue: Farewell\n\"Goodbye,\" she said."
	updated, err := svc.UpdateScene(ctx, scene.ID, DraftUpdateInput{Improved: &improved})
	if err != nil {
		t.Fatalf("UpdateScene: %v", err)
	}
	if !updated.Modified {
		t.Fatal("scene not marked modified")
	}
	if updated.FinalText == nil {
		t.Fatal("final text not recomputed")
	}
	if strings.Contains(*updated.FinalText, "### ") {
		t.Fatalf("final text kept headings: %q", *updated.FinalText)
	}
	if !strings.Contains(*updated.FinalText, "She walked out into the rain.") ||
		!strings.Contains(*updated.FinalText, "\"Goodbye,\" she said.") {
		t.Fatalf("final text = %q", *updated.FinalText)
	}
}

func TestGetQueryIncludesApiCalls(t *testing.T) {
	svc, db, _ := newLibrary(t)
	ctx := context.Background()

	story := &types.Story{Title: "T", Description: "d", Style: "s", Themes: "t"}
	if err := db.Create(story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	query := &types.Query{StoryID: &story.ID, OriginalPrompt: "p", SystemPrompt: "sys"}
	if err := db.Create(query).Error; err != nil {
		t.Fatalf("seed query: %v", err)
	}
	for i := 0; i < 2; i++ {
		call := &types.ApiCall{QueryID: query.ID, Success: true, Output: "out"}
		if err := db.Create(call).Error; err != nil {
			t.Fatalf("seed api call: %v", err)
		}
	}

	got, calls, err := svc.GetQuery(ctx, query.ID)
	if err != nil {
		t.Fatalf("GetQuery: %v", err)
	}
	if got.ID != query.ID {
		t.Fatalf("query id = %s", got.ID)
	}
	if len(calls) != 2 {
		t.Fatalf("api calls = %d, want 2", len(calls))
	}
}
