package types

type StreamEventKind string

const (
  StreamChunk     StreamEventKind = "chunks"
  StreamMidPoint  StreamEventKind = "mid_point"
  StreamResult    StreamEventKind = "result"
)

// StreamEvent is the tagged union a generation run emits: raw text deltas
// while a call streams, a midpoint marker between steps, and exactly one
// terminal result carrying the updated entity. A stream that ends without a
// result event is a failed run.
type StreamEvent struct {
  Kind        StreamEventKind   `json:"kind"`
  Chunk       string            `json:"chunk,omitempty"`
  StepName    string            `json:"step_name,omitempty"`
  Result      any               `json:"result,omitempty"`
}

func ChunkEvent(delta string) StreamEvent {
  return StreamEvent{Kind: StreamChunk, Chunk: delta}
}

func MidPointEvent(stepName string) StreamEvent {
  return StreamEvent{Kind: StreamMidPoint, StepName: stepName}
}

func ResultEvent(entity any) StreamEvent {
  return StreamEvent{Kind: StreamResult, Result: entity}
}
