package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"
)

// pathUUID parses a uuid path param and writes the 400 response itself on
// failure. Callers return immediately when ok is false.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
  raw := c.Param(name)
  id, err := uuid.Parse(raw)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_id", fmt.Errorf("invalid %s: %q", name, raw))
    return uuid.Nil, false
  }
  return id, true
}
