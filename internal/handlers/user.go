package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
)

type UserHandler struct {
  log     *logger.Logger
  library services.LibraryService
}

func NewUserHandler(baseLog *logger.Logger, library services.LibraryService) *UserHandler {
  return &UserHandler{
    log:     baseLog.With("handler", "UserHandler"),
    library: library,
  }
}

func (h *UserHandler) CreateUser(c *gin.Context) {
  var in services.UserCreateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  user, err := h.library.CreateUser(c.Request.Context(), in)
  if err != nil {
    if errors.Is(err, services.ErrEmailTaken) {
      RespondError(c, http.StatusBadRequest, "email_taken", err)
      return
    }
    h.log.Error("CreateUser failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "create_user_failed", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *UserHandler) GetUser(c *gin.Context) {
  userID, ok := pathUUID(c, "user_id")
  if !ok {
    return
  }
  user, err := h.library.GetUser(c.Request.Context(), userID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "user_not_found", err)
    return
  }
  RespondOK(c, gin.H{"user": user})
}
