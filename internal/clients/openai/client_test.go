package openai

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/yungbote/storygen-backend/internal/config"
	"github.com/yungbote/storygen-backend/internal/pkg/logger"
)

func testClient(t *testing.T, baseURL string) Client {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c, err := NewClient(&config.Config{
		OpenAIAPIKey:  "test-key",
		OpenAIBaseURL: baseURL,
		QueryModel:    "gpt-4-1106-preview",
		QueryMaxTokens: 4096,
		MaxRetries:    2,
	}, log)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func writeChunk(w http.ResponseWriter, content string, finish string) {
	finishJSON := "null"
	if finish != "" {
		finishJSON = fmt.Sprintf("%q", finish)
	}
	fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":%s}]}\n\n", content, finishJSON)
}

func TestStreamChatCompletionCollectsDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "Once upon", "")
		writeChunk(w, " a time", "")
		writeChunk(w, "", "stop")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var deltas []string
	res, err := testClient(t, srv.URL).StreamChatCompletion(context.Background(), []Message{
		{Role: RoleSystem, Content: "sys"},
		{Role: RoleUser, Content: "go"},
	}, func(d string) { deltas = append(deltas, d) })
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}
	if res.Text != "Once upon a time" {
		t.Fatalf("text = %q", res.Text)
	}
	if res.FinishReason != FinishStop {
		t.Fatalf("finish reason = %q", res.FinishReason)
	}
	if len(deltas) != 2 {
		t.Fatalf("deltas = %v", deltas)
	}
}

func TestStreamChatCompletionReportsLengthFinish(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "partial", "")
		writeChunk(w, "", "length")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	res, err := testClient(t, srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}
	if res.FinishReason != FinishLength {
		t.Fatalf("finish reason = %q", res.FinishReason)
	}
	if res.Text != "partial" {
		t.Fatalf("text = %q", res.Text)
	}
}

func TestStreamChatCompletionRetriesRetryableStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		writeChunk(w, "ok", "stop")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	res, err := testClient(t, srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	if err != nil {
		t.Fatalf("StreamChatCompletion: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("text = %q", res.Text)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d", got)
	}
}

func TestStreamChatCompletionDoesNotRetryBadRequest(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request"}}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).StreamChatCompletion(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Fatalf("error = %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d", got)
	}
}

func TestStreamSSEJoinsMultilineData(t *testing.T) {
	input := "event: message\ndata: line1\ndata: line2\n\ndata: [DONE]\n\n"
	var events []string
	err := streamSSE(strings.NewReader(input), func(event, data string) error {
		events = append(events, event+"|"+data)
		return nil
	})
	if err != nil {
		t.Fatalf("streamSSE: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %v", events)
	}
	if events[0] != "message|line1\nline2" {
		t.Fatalf("events[0] = %q", events[0])
	}
}

func TestNumTokensFromMessagesCountsFraming(t *testing.T) {
	n, err := NumTokensFromMessages([]Message{
		{Role: RoleUser, Content: "hello world"},
	}, "gpt-4-1106-preview")
	if err != nil {
		t.Fatalf("NumTokensFromMessages: %v", err)
	}
	// 3 framing + 1 role + 2 content + 3 priming.
	if n != 9 {
		t.Fatalf("tokens = %d", n)
	}
}
