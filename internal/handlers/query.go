package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
)

type QueryHandler struct {
  log     *logger.Logger
  library services.LibraryService
}

func NewQueryHandler(baseLog *logger.Logger, library services.LibraryService) *QueryHandler {
  return &QueryHandler{
    log:     baseLog.With("handler", "QueryHandler"),
    library: library,
  }
}

func (h *QueryHandler) GetQuery(c *gin.Context) {
  queryID, ok := pathUUID(c, "query_id")
  if !ok {
    return
  }
  query, calls, err := h.library.GetQuery(c.Request.Context(), queryID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "query_not_found", err)
    return
  }
  RespondOK(c, gin.H{"query": query, "api_calls": calls})
}
