package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/storygen-backend/internal/config"
	"github.com/yungbote/storygen-backend/internal/pkg/httpx"
	"github.com/yungbote/storygen-backend/internal/pkg/logger"
)

// Message is one chat turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Finish reasons the completions API reports.
const (
	FinishStop          = "stop"
	FinishLength        = "length"
	FinishContentFilter = "content_filter"
)

// StreamResult is the outcome of one physical streamed exchange.
type StreamResult struct {
	Text         string
	FinishReason string
}

// Client streams chat completions. Transport failures while opening the
// stream are retried with exponential backoff internally; a stream that
// breaks after the first delta surfaces as an error so the caller can decide
// whether the partial text is usable.
type Client interface {
	StreamChatCompletion(ctx context.Context, messages []Message, onDelta func(delta string)) (StreamResult, error)
}

type client struct {
	log              *logger.Logger
	baseURL          string
	apiKey           string
	model            string
	maxTokens        int
	temperature      float64
	frequencyPenalty float64
	httpClient       *http.Client

	maxRetries int
}

func NewClient(cfg *config.Config, log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	return &client{
		log:              log.With("service", "OpenAIClient"),
		baseURL:          strings.TrimRight(cfg.OpenAIBaseURL, "/"),
		apiKey:           cfg.OpenAIAPIKey,
		model:            cfg.QueryModel,
		maxTokens:        cfg.QueryMaxTokens,
		temperature:      cfg.QueryTemperature,
		frequencyPenalty: cfg.QueryFrequencyPenalty,
		httpClient:       &http.Client{Timeout: 10 * time.Minute},
		maxRetries:       cfg.MaxRetries,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

type chatCompletionsRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	MaxTokens        int       `json:"max_tokens,omitempty"`
	Temperature      float64   `json:"temperature"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	Stream           bool      `json:"stream"`
}

type chatCompletionsChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *client) StreamChatCompletion(ctx context.Context, messages []Message, onDelta func(delta string)) (StreamResult, error) {
	backoff := 1 * time.Second

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return StreamResult{}, ctx.Err()
		}

		resp, err := c.open(ctx, messages)
		if err == nil {
			return c.consume(resp, onDelta)
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return StreamResult{}, err
		}

		sleepFor := httpx.RetryAfterDuration(respFromError(err), backoff, 10*time.Second)
		sleepFor = httpx.Jitter(sleepFor)

		c.log.Warn("OpenAI stream open retrying",
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return StreamResult{}, ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
}

// open sends the request and returns the response with an open body, or an
// error after draining a non-2xx response.
func (c *client) open(ctx context.Context, messages []Message) (*http.Response, error) {
	reqBody := chatCompletionsRequest{
		Model:            c.model,
		Messages:         messages,
		MaxTokens:        c.maxTokens,
		Temperature:      c.temperature,
		FrequencyPenalty: c.frequencyPenalty,
		Stream:           true,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		return nil, &statusError{
			resp: resp,
			err:  &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)},
		}
	}
	return resp, nil
}

func (c *client) consume(resp *http.Response, onDelta func(delta string)) (StreamResult, error) {
	defer resp.Body.Close()

	var full strings.Builder
	finishReason := ""

	err := streamSSE(resp.Body, func(event string, data string) error {
		if strings.TrimSpace(data) == "" || strings.TrimSpace(data) == "[DONE]" {
			return nil
		}

		var chunk chatCompletionsChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai stream error: %s (%s)", chunk.Error.Message, chunk.Error.Type)
		}
		if len(chunk.Choices) == 0 {
			return nil
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
		if choice.Delta.Content != "" {
			full.WriteString(choice.Delta.Content)
			if onDelta != nil {
				onDelta(choice.Delta.Content)
			}
		}
		return nil
	})
	if err != nil {
		return StreamResult{}, err
	}

	return StreamResult{Text: full.String(), FinishReason: finishReason}, nil
}

// statusError pairs the failed response with its typed error so the retry
// loop can honor Retry-After.
type statusError struct {
	resp *http.Response
	err  *openAIHTTPError
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func respFromError(err error) *http.Response {
	var se *statusError
	if errors.As(err, &se) {
		return se.resp
	}
	return nil
}

func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""

		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = flush()
				break
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends event.
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		// Comment.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}

	return nil
}
