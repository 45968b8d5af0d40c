package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/yungbote/storygen-backend/internal/clients/openai"
  "github.com/yungbote/storygen-backend/internal/config"
  "github.com/yungbote/storygen-backend/internal/pkg/ctxutil"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/repos"
  "github.com/yungbote/storygen-backend/internal/types"
)

// ContinuePrompt resumes a response the model cut off at the token limit.
const ContinuePrompt = "Your last message got cutoff, without repeating yourself, please continue writing exactly where you left off."

// QueryLink ties a Query to the entity it generated. StoryID is always set
// so per-story cost rollups stay a single indexed lookup.
type QueryLink struct {
  StoryID          *uuid.UUID
  StoryOutlineID   *uuid.UUID
  ChapterOutlineID *uuid.UUID
  SceneOutlineID   *uuid.UUID
  SceneID          *uuid.UUID
}

func (l QueryLink) apply(q *types.Query) {
  q.StoryID = l.StoryID
  q.StoryOutlineID = l.StoryOutlineID
  q.ChapterOutlineID = l.ChapterOutlineID
  q.SceneOutlineID = l.SceneOutlineID
  q.SceneID = l.SceneID
}

type ExecutorInput struct {
  SystemPrompt     string
  Prompt           string
  AuthorID         *uuid.UUID
  Link             QueryLink
  PreviousMessages []openai.Message
}

// ExecutorResult is the settled logical query. Output is every streamed
// chunk concatenated across continuations; Messages is the full transcript
// ending with the final assistant turn.
type ExecutorResult struct {
  Query    *types.Query
  Output   string
  Messages []openai.Message
}

// Executor runs one logical model query: it streams the call, transparently
// continues responses the model truncated, retries content filtered
// exchanges, and persists the Query with one ApiCall row per physical
// exchange.
type Executor interface {
  Run(ctx context.Context, in ExecutorInput, onDelta func(delta string)) (*ExecutorResult, error)
}

type executor struct {
  cfg      *config.Config
  log      *logger.Logger
  client   openai.Client
  queries  repos.QueryRepo
  apiCalls repos.ApiCallRepo
  users    repos.UserRepo
}

func NewExecutor(cfg *config.Config, baseLog *logger.Logger, client openai.Client, queries repos.QueryRepo, apiCalls repos.ApiCallRepo, users repos.UserRepo) Executor {
  svcLog := baseLog.With("service", "Executor")
  return &executor{cfg: cfg, log: svcLog, client: client, queries: queries, apiCalls: apiCalls, users: users}
}

func (e *executor) Run(ctx context.Context, in ExecutorInput, onDelta func(delta string)) (*ExecutorResult, error) {
  ctx = ctxutil.Default(ctx)

  systemPrompt := in.SystemPrompt
  if e.cfg.SysPromptPrefix != "" {
    systemPrompt = e.cfg.SysPromptPrefix + systemPrompt
  }

  messages := make([]openai.Message, 0, len(in.PreviousMessages)+2)
  messages = append(messages, openai.Message{Role: openai.RoleSystem, Content: systemPrompt})
  messages = append(messages, in.PreviousMessages...)
  messages = append(messages, openai.Message{Role: openai.RoleUser, Content: in.Prompt})

  query := &types.Query{
    AuthorID:         in.AuthorID,
    OriginalPrompt:   in.Prompt,
    SystemPrompt:     systemPrompt,
    PreviousMessages: marshalMessages(in.PreviousMessages),
  }
  in.Link.apply(query)
  if _, err := e.queries.Create(ctx, nil, []*types.Query{query}); err != nil {
    return nil, fmt.Errorf("create query: %w", err)
  }

  var completeOutput strings.Builder
  continues := 0
  retries := 0
  totalCost := 0.0

  var runErr error

loop:
  for {
    res, err := e.client.StreamChatCompletion(ctx, messages, onDelta)
    if err != nil {
      if ctx.Err() != nil {
        runErr = ctx.Err()
        break loop
      }
      e.recordCall(ctx, query.ID, messages, "", false, err.Error(), nil)
      retries++
      if retries > e.cfg.MaxRetries {
        runErr = fmt.Errorf("model call failed: %w", err)
        break loop
      }
      continue
    }

    callCost := e.callCost(messages, res.Text)
    if callCost != nil {
      totalCost += *callCost
    }

    switch res.FinishReason {
    case openai.FinishLength:
      e.recordCall(ctx, query.ID, messages, res.Text, true, "", callCost)
      completeOutput.WriteString(res.Text)
      messages = append(messages,
        openai.Message{Role: openai.RoleAssistant, Content: res.Text},
        openai.Message{Role: openai.RoleUser, Content: ContinuePrompt},
      )
      continues++
      retries = 0

    case openai.FinishStop:
      e.recordCall(ctx, query.ID, messages, res.Text, true, "", callCost)
      completeOutput.WriteString(res.Text)
      messages = append(messages, openai.Message{Role: openai.RoleAssistant, Content: res.Text})
      break loop

    case openai.FinishContentFilter:
      e.recordCall(ctx, query.ID, messages, res.Text, false, "content_filter", callCost)
      completeOutput.WriteString(res.Text)
      retries++
      if retries > e.cfg.MaxRetries {
        runErr = fmt.Errorf("content filtered after %d attempts", retries)
        break loop
      }

    default:
      e.recordCall(ctx, query.ID, messages, res.Text, false, "unknown", callCost)
      completeOutput.WriteString(res.Text)
      retries++
      runErr = fmt.Errorf("model stopped with finish reason %q", res.FinishReason)
      break loop
    }
  }

  query.Continues = continues
  query.Retries = retries
  query.TotalCost = totalCost
  query.CompleteOutput = completeOutput.String()
  query.AllMessages = marshalMessages(messages)

  if err := e.queries.UpdateFields(ctx, nil, query.ID, map[string]interface{}{
    "continues":       continues,
    "retries":         retries,
    "total_cost":      totalCost,
    "complete_output": query.CompleteOutput,
    "all_messages":    query.AllMessages,
  }); err != nil {
    e.log.Error("failed to finalize query", "query_id", query.ID, "error", err)
    if runErr == nil {
      runErr = err
    }
  }

  // Spend accrues on the author even when the logical query fails; the
  // model calls already happened.
  if in.AuthorID != nil && totalCost > 0 {
    if err := e.users.AddTokens(ctx, nil, *in.AuthorID, totalCost); err != nil {
      e.log.Error("failed to charge author", "query_id", query.ID, "author_id", *in.AuthorID, "error", err)
    }
  }

  result := &ExecutorResult{Query: query, Output: query.CompleteOutput, Messages: messages}
  if runErr != nil {
    return result, runErr
  }
  return result, nil
}

func (e *executor) recordCall(ctx context.Context, queryID uuid.UUID, input []openai.Message, output string, success bool, callErr string, cost *float64) {
  call := &types.ApiCall{
    QueryID:       queryID,
    Success:       success,
    Error:         callErr,
    Cost:          cost,
    InputMessages: marshalMessages(input),
    Output:        output,
  }
  if _, err := e.apiCalls.Create(ctx, nil, []*types.ApiCall{call}); err != nil {
    e.log.Error("failed to record api call", "query_id", queryID, "error", err)
  }
}

// callCost prices one exchange from tiktoken counts. Nil when the transcript
// could not be counted.
func (e *executor) callCost(input []openai.Message, output string) *float64 {
  promptTokens, err := openai.NumTokensFromMessages(input, e.cfg.QueryModel)
  if err != nil {
    e.log.Warn("token count failed", "error", err)
    return nil
  }
  completionTokens, err := openai.NumTokensFromMessages([]openai.Message{
    {Role: openai.RoleAssistant, Content: output},
  }, e.cfg.QueryModel)
  if err != nil {
    e.log.Warn("token count failed", "error", err)
    return nil
  }
  cost := calcCost(promptTokens, completionTokens, e.cfg.PromptTokenPrice, e.cfg.CompletionTokenPrice)
  return &cost
}

func calcCost(promptTokens, completionTokens int, promptPrice, completionPrice float64) float64 {
  return float64(promptTokens)/1000.0*promptPrice + float64(completionTokens)/1000.0*completionPrice
}

func marshalMessages(messages []openai.Message) datatypes.JSON {
  if messages == nil {
    messages = []openai.Message{}
  }
  raw, err := json.Marshal(messages)
  if err != nil {
    return datatypes.JSON([]byte("[]"))
  }
  return datatypes.JSON(raw)
}
