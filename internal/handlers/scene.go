package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/services"
)

type SceneHandler struct {
  log     *logger.Logger
  library services.LibraryService
}

func NewSceneHandler(baseLog *logger.Logger, library services.LibraryService) *SceneHandler {
  return &SceneHandler{
    log:     baseLog.With("handler", "SceneHandler"),
    library: library,
  }
}

func (h *SceneHandler) GetSceneOutline(c *gin.Context) {
  sceneOutlineID, ok := pathUUID(c, "scene_outline_id")
  if !ok {
    return
  }
  sceneOutline, err := h.library.GetSceneOutline(c.Request.Context(), sceneOutlineID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "scene_outline_not_found", err)
    return
  }
  RespondOK(c, gin.H{"scene_outline": sceneOutline})
}

func (h *SceneHandler) UpdateSceneOutline(c *gin.Context) {
  sceneOutlineID, ok := pathUUID(c, "scene_outline_id")
  if !ok {
    return
  }
  var in services.DraftUpdateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  sceneOutline, err := h.library.UpdateSceneOutline(c.Request.Context(), sceneOutlineID, in)
  if err != nil {
    h.log.Error("UpdateSceneOutline failed", "error", err, "scene_outline_id", sceneOutlineID)
    RespondError(c, http.StatusInternalServerError, "update_scene_outline_failed", err)
    return
  }
  RespondOK(c, gin.H{"scene_outline": sceneOutline})
}

func (h *SceneHandler) GetCurrentScene(c *gin.Context) {
  sceneOutlineID, ok := pathUUID(c, "scene_outline_id")
  if !ok {
    return
  }
  scene, err := h.library.CurrentSceneForOutline(c.Request.Context(), sceneOutlineID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "scene_not_found", err)
    return
  }
  RespondOK(c, gin.H{"scene": scene})
}

func (h *SceneHandler) GetScene(c *gin.Context) {
  sceneID, ok := pathUUID(c, "scene_id")
  if !ok {
    return
  }
  scene, err := h.library.GetScene(c.Request.Context(), sceneID)
  if err != nil {
    RespondError(c, http.StatusNotFound, "scene_not_found", err)
    return
  }
  RespondOK(c, gin.H{"scene": scene})
}

func (h *SceneHandler) UpdateScene(c *gin.Context) {
  sceneID, ok := pathUUID(c, "scene_id")
  if !ok {
    return
  }
  var in services.DraftUpdateInput
  if err := c.ShouldBindJSON(&in); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  scene, err := h.library.UpdateScene(c.Request.Context(), sceneID, in)
  if err != nil {
    h.log.Error("UpdateScene failed", "error", err, "scene_id", sceneID)
    RespondError(c, http.StatusInternalServerError, "update_scene_failed", err)
    return
  }
  RespondOK(c, gin.H{"scene": scene})
}
