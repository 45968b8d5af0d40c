package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
)

// OutlineHandler serves story outlines and the chapter outlines under them.
type OutlineHandler struct {
  log     *logger.Logger
  library services.LibraryService
}

func NewOutlineHandler(baseLog *logger.Logger, library services.LibraryService) *OutlineHandler {
  return &OutlineHandler{
    log:     baseLog.With("handler", "OutlineHandler"),
    library: library,
  }
}

func (h *OutlineHandler) GetStoryOutline(c *gin.Context) {
  outlineID, ok := pathUUID(c, "story_outline_id")
  if !ok {
    return
  }
  outline, err := h.library.GetStoryOutline(c.Request.Context(), outlineID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "story_outline_not_found", err)
    return
  }
  RespondOK(c, gin.H{"story_outline": outline})
}

func (h *OutlineHandler) UpdateStoryOutline(c *gin.Context) {
  outlineID, ok := pathUUID(c, "story_outline_id")
  if !ok {
    return
  }
  var in services.OutlineUpdateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  outline, err := h.library.UpdateStoryOutline(c.Request.Context(), outlineID, in)
  if err != nil {
    h.log.Error("UpdateStoryOutline failed", "error", err, "story_outline_id", outlineID)
    RespondError(c, http.StatusInternalServerError, "update_story_outline_failed", err)
    return
  }
  RespondOK(c, gin.H{"story_outline": outline})
}

func (h *OutlineHandler) ListChapters(c *gin.Context) {
  outlineID, ok := pathUUID(c, "story_outline_id")
  if !ok {
    return
  }
  chapters, err := h.library.ChaptersForOutline(c.Request.Context(), outlineID)
  if err != nil {
    h.log.Error("ListChapters failed", "error", err, "story_outline_id", outlineID)
    RespondError(c, http.StatusInternalServerError, "list_chapters_failed", err)
    return
  }
  RespondOK(c, gin.H{"chapter_outlines": chapters})
}

func (h *OutlineHandler) GetChapterOutline(c *gin.Context) {
  chapterID, ok := pathUUID(c, "chapter_outline_id")
  if !ok {
    return
  }
  chapter, err := h.library.GetChapterOutline(c.Request.Context(), chapterID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "chapter_outline_not_found", err)
    return
  }
  RespondOK(c, gin.H{"chapter_outline": chapter})
}

func (h *OutlineHandler) UpdateChapterOutline(c *gin.Context) {
  chapterID, ok := pathUUID(c, "chapter_outline_id")
  if !ok {
    return
  }
  var in services.DraftUpdateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  chapter, err := h.library.UpdateChapterOutline(c.Request.Context(), chapterID, in)
  if err != nil {
    h.log.Error("UpdateChapterOutline failed", "error", err, "chapter_outline_id", chapterID)
    RespondError(c, http.StatusInternalServerError, "update_chapter_outline_failed", err)
    return
  }
  RespondOK(c, gin.H{"chapter_outline": chapter})
}

func (h *OutlineHandler) ListSceneOutlines(c *gin.Context) {
  chapterID, ok := pathUUID(c, "chapter_outline_id")
  if !ok {
    return
  }
  sceneOutlines, err := h.library.SceneOutlinesForChapter(c.Request.Context(), chapterID)
  if err != nil {
    h.log.Error("ListSceneOutlines failed", "error", err, "chapter_outline_id", chapterID)
    RespondError(c, http.StatusInternalServerError, "list_scene_outlines_failed", err)
    return
  }
  RespondOK(c, gin.H{"scene_outlines": sceneOutlines})
}
