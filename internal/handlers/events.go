package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/sse"
)

// EventsHandler holds one long lived SSE connection per browser tab and
// relays entity update broadcasts for the stories it subscribes to.
type EventsHandler struct {
  log *logger.Logger
  hub *sse.SSEHub
}

func NewEventsHandler(baseLog *logger.Logger, hub *sse.SSEHub) *EventsHandler {
  return &EventsHandler{
    log: baseLog.With("handler", "EventsHandler"),
    hub: hub,
  }
}

// Subscribe opens the stream. Stories to watch come in as a repeatable
// "story_id" query param.
func (h *EventsHandler) Subscribe(c *gin.Context) {
  var userID uuid.UUID
  if raw := c.Query("user_id"); raw != "" {
    id, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_user_id", err)
      return
    }
    userID = id
  }

  storyIDs := c.QueryArray("story_id")
  if len(storyIDs) == 0 {
    RespondError(c, http.StatusBadRequest, "missing_story_id", nil)
    return
  }

  client := h.hub.NewSSEClient(userID)
  defer h.hub.CloseClient(client)

  for _, raw := range storyIDs {
    storyID, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_story_id", err)
      return
    }
    h.hub.AddChannel(client, sse.StoryChannel(storyID))
  }

  h.hub.ServeHTTP(c.Writer, c.Request, client)
}
