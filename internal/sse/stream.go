package sse

import (
  "encoding/json"
  "fmt"
  "net/http"
  "strings"
  "sync"

  "github.com/yungbote/storygen-backend/internal/types"
)

// StreamWriter writes a single generation run to one response as
// server-sent events. Three event names are used: "chunks" for raw text
// deltas, "mid_point" for step transitions, and "result" for the terminal
// entity. A stream that closes without a result event failed.
type StreamWriter struct {
  mu      sync.Mutex
  w       http.ResponseWriter
  flusher http.Flusher
}

func NewStreamWriter(w http.ResponseWriter) (*StreamWriter, error) {
  flusher, ok := w.(http.Flusher)
  if !ok {
    return nil, fmt.Errorf("response writer does not support streaming")
  }
  w.Header().Set("Content-Type", "text/event-stream")
  w.Header().Set("Cache-Control", "no-cache")
  w.Header().Set("Connection", "keep-alive")
  w.Header().Set("X-Accel-Buffering", "no")
  w.WriteHeader(http.StatusOK)
  flusher.Flush()
  return &StreamWriter{w: w, flusher: flusher}, nil
}

// escapeChunk keeps a delta on a single data line. The client reverses the
// escaping after reassembly.
func escapeChunk(s string) string {
  s = strings.ReplaceAll(s, "%", "%25")
  s = strings.ReplaceAll(s, "\r", "%0D")
  s = strings.ReplaceAll(s, "\n", "%0A")
  return s
}

func (sw *StreamWriter) WriteChunk(text string) {
  sw.mu.Lock()
  defer sw.mu.Unlock()
  fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", types.StreamChunk, escapeChunk(text))
  sw.flusher.Flush()
}

func (sw *StreamWriter) WriteMidPoint(stepName string) {
  sw.mu.Lock()
  defer sw.mu.Unlock()
  fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", types.StreamMidPoint, escapeChunk(stepName))
  sw.flusher.Flush()
}

func (sw *StreamWriter) WriteResult(entity any) error {
  raw, err := json.Marshal(entity)
  if err != nil {
    return err
  }
  sw.mu.Lock()
  defer sw.mu.Unlock()
  fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", types.StreamResult, string(raw))
  sw.flusher.Flush()
  return nil
}

// WriteEvent dispatches one stream event to the matching writer.
func (sw *StreamWriter) WriteEvent(event types.StreamEvent) {
  switch event.Kind {
  case types.StreamChunk:
    sw.WriteChunk(event.Chunk)
  case types.StreamMidPoint:
    sw.WriteMidPoint(event.StepName)
  case types.StreamResult:
    _ = sw.WriteResult(event.Result)
  }
}
