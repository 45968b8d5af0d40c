package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
)

type StoryHandler struct {
  log     *logger.Logger
  library services.LibraryService
}

func NewStoryHandler(baseLog *logger.Logger, library services.LibraryService) *StoryHandler {
  return &StoryHandler{
    log:     baseLog.With("handler", "StoryHandler"),
    library: library,
  }
}

func (h *StoryHandler) CreateStory(c *gin.Context) {
  var in services.StoryCreateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  story, err := h.library.CreateStory(c.Request.Context(), in)
  if err != nil {
    h.log.Error("CreateStory failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "create_story_failed", err)
    return
  }
  c.JSON(http.StatusCreated, gin.H{"story": story})
}

func (h *StoryHandler) GetStory(c *gin.Context) {
  storyID, ok := pathUUID(c, "story_id")
  if !ok {
    return
  }
  story, err := h.library.GetStory(c.Request.Context(), storyID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "story_not_found", err)
    return
  }
  RespondOK(c, gin.H{"story": story})
}

func (h *StoryHandler) ListStories(c *gin.Context) {
  var authorID *uuid.UUID
  if raw := c.Query("author_id"); raw != "" {
    id, err := uuid.Parse(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_author_id", err)
      return
    }
    authorID = &id
  }
  stories, err := h.library.ListStories(c.Request.Context(), authorID)
  if err != nil {
    h.log.Error("ListStories failed", "error", err)
    RespondError(c, http.StatusInternalServerError, "list_stories_failed", err)
    return
  }
  RespondOK(c, gin.H{"stories": stories})
}

func (h *StoryHandler) UpdateStory(c *gin.Context) {
  storyID, ok := pathUUID(c, "story_id")
  if !ok {
    return
  }
  var in services.StoryUpdateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  story, err := h.library.UpdateStory(c.Request.Context(), storyID, in)
  if err != nil {
    h.log.Error("UpdateStory failed", "error", err, "story_id", storyID)
    RespondError(c, http.StatusInternalServerError, "update_story_failed", err)
    return
  }
  RespondOK(c, gin.H{"story": story})
}

func (h *StoryHandler) DeleteStory(c *gin.Context) {
  storyID, ok := pathUUID(c, "story_id")
  if !ok {
    return
  }
  if err := h.library.DeleteStory(c.Request.Context(), storyID); err != nil {
    h.log.Error("DeleteStory failed", "error", err, "story_id", storyID)
    RespondError(c, http.StatusInternalServerError, "delete_story_failed", err)
    return
  }
  c.Status(http.StatusNoContent)
}

func (h *StoryHandler) GetCurrentOutline(c *gin.Context) {
  storyID, ok := pathUUID(c, "story_id")
  if !ok {
    return
  }
  outline, err := h.library.CurrentStoryOutline(c.Request.Context(), storyID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "outline_not_found", err)
    return
  }
  RespondOK(c, gin.H{"story_outline": outline})
}

func (h *StoryHandler) ListQueries(c *gin.Context) {
  storyID, ok := pathUUID(c, "story_id")
  if !ok {
    return
  }
  queries, err := h.library.StoryQueries(c.Request.Context(), storyID)
  if err != nil {
    h.log.Error("ListQueries failed", "error", err, "story_id", storyID)
    RespondError(c, http.StatusInternalServerError, "list_queries_failed", err)
    return
  }
  RespondOK(c, gin.H{"queries": queries})
}
