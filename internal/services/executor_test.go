package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/storygen-backend/internal/clients/openai"
	"github.com/yungbote/storygen-backend/internal/config"
	"github.com/yungbote/storygen-backend/internal/pkg/logger"
	"github.com/yungbote/storygen-backend/internal/repos"
	"github.com/yungbote/storygen-backend/internal/types"
)

type scriptedCall struct {
	res openai.StreamResult
	err error
}

type fakeClient struct {
	script []scriptedCall
	calls  [][]openai.Message
}

func (f *fakeClient) StreamChatCompletion(ctx context.Context, messages []openai.Message, onDelta func(string)) (openai.StreamResult, error) {
	i := len(f.calls)
	copied := make([]openai.Message, len(messages))
	copy(copied, messages)
	f.calls = append(f.calls, copied)

	if i >= len(f.script) {
		return openai.StreamResult{}, errors.New("unexpected extra call")
	}
	step := f.script[i]
	if step.err != nil {
		return openai.StreamResult{}, step.err
	}
	if onDelta != nil && step.res.Text != "" {
		onDelta(step.res.Text)
	}
	return step.res, nil
}

func serviceTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.User{},
		&types.Story{},
		&types.StoryOutline{},
		&types.ChapterOutline{},
		&types.SceneOutline{},
		&types.Scene{},
		&types.Query{},
		&types.ApiCall{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return db, log
}

func testConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey:         "test-key",
		QueryModel:           "gpt-4-1106-preview",
		QueryMaxTokens:       4096,
		MaxRetries:           2,
		SkipParagraphStep:    true,
		PromptTokenPrice:     0.01,
		CompletionTokenPrice: 0.03,
	}
}

func newTestExecutor(t *testing.T, db *gorm.DB, log *logger.Logger, client openai.Client) (Executor, repos.QueryRepo, repos.ApiCallRepo) {
	t.Helper()
	queries := repos.NewQueryRepo(db, log)
	apiCalls := repos.NewApiCallRepo(db, log)
	return NewExecutor(testConfig(), log, client, queries, apiCalls, repos.NewUserRepo(db, log)), queries, apiCalls
}

func TestExecutorContinuesTruncatedResponses(t *testing.T) {
	db, log := serviceTestDB(t)
	client := &fakeClient{script: []scriptedCall{
		{res: openai.StreamResult{Text: "part one ", FinishReason: openai.FinishLength}},
		{res: openai.StreamResult{Text: "part two ", FinishReason: openai.FinishLength}},
		{res: openai.StreamResult{Text: "part three", FinishReason: openai.FinishStop}},
	}}
	exec, queries, apiCalls := newTestExecutor(t, db, log, client)

	var chunks []string
	result, err := exec.Run(context.Background(), ExecutorInput{
		SystemPrompt: "system",
		Prompt:       "write",
	}, func(d string) { chunks = append(chunks, d) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Output != "part one part two part three" {
		t.Fatalf("output = %q", result.Output)
	}
	if len(chunks) != 3 {
		t.Fatalf("chunks = %d", len(chunks))
	}

	// system, user, assistant, continue, assistant, continue, assistant.
	if len(result.Messages) != 7 {
		t.Fatalf("messages = %d", len(result.Messages))
	}
	if result.Messages[3].Content != ContinuePrompt || result.Messages[3].Role != openai.RoleUser {
		t.Fatalf("message 3 = %+v", result.Messages[3])
	}
	if result.Messages[6].Role != openai.RoleAssistant || result.Messages[6].Content != "part three" {
		t.Fatalf("message 6 = %+v", result.Messages[6])
	}

	// The second call replays the truncated assistant turn plus the
	// continue prompt.
	if len(client.calls) != 3 {
		t.Fatalf("api calls made = %d", len(client.calls))
	}
	if len(client.calls[1]) != 4 || client.calls[1][3].Content != ContinuePrompt {
		t.Fatalf("second call transcript = %+v", client.calls[1])
	}

	query, err := queries.GetByID(context.Background(), nil, result.Query.ID)
	if err != nil {
		t.Fatalf("load query: %v", err)
	}
	if query.Continues != 2 || query.Retries != 0 {
		t.Fatalf("continues = %d retries = %d", query.Continues, query.Retries)
	}
	if query.CompleteOutput != result.Output {
		t.Fatalf("complete output = %q", query.CompleteOutput)
	}
	var all []openai.Message
	if err := json.Unmarshal(query.AllMessages, &all); err != nil {
		t.Fatalf("all_messages: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("persisted messages = %d", len(all))
	}

	calls, err := apiCalls.ListForQuery(context.Background(), nil, query.ID)
	if err != nil {
		t.Fatalf("list calls: %v", err)
	}
	if len(calls) != 3 {
		t.Fatalf("api call rows = %d", len(calls))
	}
	for _, c := range calls {
		if !c.Success {
			t.Fatalf("call %s not successful", c.ID)
		}
	}
}

func TestExecutorContentFilterRetriesBounded(t *testing.T) {
	db, log := serviceTestDB(t)
	client := &fakeClient{script: []scriptedCall{
		{res: openai.StreamResult{Text: "", FinishReason: openai.FinishContentFilter}},
		{res: openai.StreamResult{Text: "", FinishReason: openai.FinishContentFilter}},
		{res: openai.StreamResult{Text: "", FinishReason: openai.FinishContentFilter}},
	}}
	exec, _, apiCalls := newTestExecutor(t, db, log, client)

	result, err := exec.Run(context.Background(), ExecutorInput{
		SystemPrompt: "system",
		Prompt:       "write",
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}

	// MaxRetries=2 allows three attempts total.
	if len(client.calls) != 3 {
		t.Fatalf("api calls made = %d", len(client.calls))
	}
	calls, listErr := apiCalls.ListForQuery(context.Background(), nil, result.Query.ID)
	if listErr != nil {
		t.Fatalf("list calls: %v", listErr)
	}
	for _, c := range calls {
		if c.Success || c.Error != "content_filter" {
			t.Fatalf("call = %+v", c)
		}
	}
	if result.Query.Retries != 3 {
		t.Fatalf("retries = %d", result.Query.Retries)
	}
}

func TestExecutorContinuationResetsRetryCounter(t *testing.T) {
	db, log := serviceTestDB(t)
	client := &fakeClient{script: []scriptedCall{
		{res: openai.StreamResult{Text: "", FinishReason: openai.FinishContentFilter}},
		{res: openai.StreamResult{Text: "a", FinishReason: openai.FinishLength}},
		{res: openai.StreamResult{Text: "b", FinishReason: openai.FinishStop}},
	}}
	exec, _, _ := newTestExecutor(t, db, log, client)

	result, err := exec.Run(context.Background(), ExecutorInput{
		SystemPrompt: "system",
		Prompt:       "write",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Output != "ab" {
		t.Fatalf("output = %q", result.Output)
	}
	if result.Query.Retries != 0 {
		t.Fatalf("retries = %d, want reset to 0 after continuation", result.Query.Retries)
	}
	if result.Query.Continues != 1 {
		t.Fatalf("continues = %d", result.Query.Continues)
	}
}

func TestExecutorUnknownFinishReasonIsFatal(t *testing.T) {
	db, log := serviceTestDB(t)
	client := &fakeClient{script: []scriptedCall{
		{res: openai.StreamResult{Text: "half", FinishReason: "tool_calls"}},
	}}
	exec, _, _ := newTestExecutor(t, db, log, client)

	result, err := exec.Run(context.Background(), ExecutorInput{
		SystemPrompt: "system",
		Prompt:       "write",
	}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(client.calls) != 1 {
		t.Fatalf("api calls made = %d", len(client.calls))
	}
	// Partial output is still preserved on the query row.
	if result.Query.CompleteOutput != "half" {
		t.Fatalf("complete output = %q", result.Query.CompleteOutput)
	}
}

func TestExecutorPrependsSystemPromptPrefix(t *testing.T) {
	db, log := serviceTestDB(t)
	client := &fakeClient{script: []scriptedCall{
		{res: openai.StreamResult{Text: "done", FinishReason: openai.FinishStop}},
	}}
	cfg := testConfig()
	cfg.SysPromptPrefix = "PREFIX "
	queries := repos.NewQueryRepo(db, log)
	apiCalls := repos.NewApiCallRepo(db, log)
	exec := NewExecutor(cfg, log, client, queries, apiCalls, repos.NewUserRepo(db, log))

	result, err := exec.Run(context.Background(), ExecutorInput{
		SystemPrompt: "system",
		Prompt:       "write",
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Messages[0].Content != "PREFIX system" {
		t.Fatalf("system message = %q", result.Messages[0].Content)
	}
	if result.Query.SystemPrompt != "PREFIX system" {
		t.Fatalf("persisted system prompt = %q", result.Query.SystemPrompt)
	}
}

func TestCalcCost(t *testing.T) {
	got := calcCost(1000, 1000, 0.01, 0.03)
	if got != 0.04 {
		t.Fatalf("cost = %v", got)
	}
	if calcCost(0, 0, 0.01, 0.03) != 0 {
		t.Fatalf("zero tokens should cost nothing")
	}
}
