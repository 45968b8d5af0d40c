package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
  "github.com/yungbote/storygen-backend/internal/sse"
)

// GenerateHandler exposes the five pipeline stages as SSE endpoints. Each
// stream carries "chunks" and "mid_point" events while the stage runs and a
// terminal "result" event on success. A stream that ends without a result
// event means the run failed; the error is logged server side only.
type GenerateHandler struct {
  log        *logger.Logger
  generation services.GenerationService
}

func NewGenerateHandler(baseLog *logger.Logger, generation services.GenerationService) *GenerateHandler {
  return &GenerateHandler{
    log:        baseLog.With("handler", "GenerateHandler"),
    generation: generation,
  }
}

type generateFunc func(c *gin.Context, id uuid.UUID, emit services.Emitter) error

func (h *GenerateHandler) stream(c *gin.Context, param string, run generateFunc) {
  id, ok := pathUUID(c, param)
  if !ok {
    return
  }
  sw, err := sse.NewStreamWriter(c.Writer)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "streaming_unsupported", err)
    return
  }
  if err := run(c, id, sw.WriteEvent); err != nil {
    h.log.Error("generation run failed", "error", err, "id", id)
  }
}

func (h *GenerateHandler) GenerateStory(c *gin.Context) {
  h.stream(c, "story_id", func(c *gin.Context, id uuid.UUID, emit services.Emitter) error {
    _, err := h.generation.GenerateStory(c.Request.Context(), id, emit)
    return err
  })
}

func (h *GenerateHandler) GenerateStoryOutline(c *gin.Context) {
  h.stream(c, "story_outline_id", func(c *gin.Context, id uuid.UUID, emit services.Emitter) error {
    _, err := h.generation.GenerateStoryOutline(c.Request.Context(), id, emit)
    return err
  })
}

func (h *GenerateHandler) GenerateChapterOutline(c *gin.Context) {
  h.stream(c, "chapter_outline_id", func(c *gin.Context, id uuid.UUID, emit services.Emitter) error {
    _, err := h.generation.GenerateChapterOutline(c.Request.Context(), id, emit)
    return err
  })
}

func (h *GenerateHandler) GenerateSceneOutline(c *gin.Context) {
  h.stream(c, "scene_outline_id", func(c *gin.Context, id uuid.UUID, emit services.Emitter) error {
    _, err := h.generation.GenerateSceneOutline(c.Request.Context(), id, emit)
    return err
  })
}

func (h *GenerateHandler) GenerateSceneText(c *gin.Context) {
  h.stream(c, "scene_id", func(c *gin.Context, id uuid.UUID, emit services.Emitter) error {
    _, err := h.generation.GenerateSceneText(c.Request.Context(), id, emit)
    return err
  })
}
