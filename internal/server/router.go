package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"
  "github.com/yungbote/storygen-backend/internal/handlers"
  "github.com/yungbote/storygen-backend/internal/middleware"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
)

type RouterConfig struct {
  Log             *logger.Logger
  UserHandler     *handlers.UserHandler
  StoryHandler    *handlers.StoryHandler
  OutlineHandler  *handlers.OutlineHandler
  SceneHandler    *handlers.SceneHandler
  QueryHandler    *handlers.QueryHandler
  GenerateHandler *handlers.GenerateHandler
  EventsHandler   *handlers.EventsHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.New()
  router.Use(middleware.RequestLogger(cfg.Log))
  router.Use(gin.Recovery())

  // Cors
  router.Use(cors.New(cors.Config{
    AllowOrigins: []string{
      "http://localhost:80",
      "http://localhost:3000",
      "http://localhost:5174",
    },
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  router.GET("/healthcheck", handlers.HealthCheck)

  api := router.Group("/api")
  {
    // User
    api.POST("/user", cfg.UserHandler.CreateUser)
    api.GET("/user/:user_id", cfg.UserHandler.GetUser)

    // Story
    api.POST("/story", cfg.StoryHandler.CreateStory)
    api.GET("/story", cfg.StoryHandler.ListStories)
    api.GET("/story/:story_id", cfg.StoryHandler.GetStory)
    api.PUT("/story/:story_id", cfg.StoryHandler.UpdateStory)
    api.DELETE("/story/:story_id", cfg.StoryHandler.DeleteStory)
    api.GET("/story/:story_id/outline", cfg.StoryHandler.GetCurrentOutline)
    api.GET("/story/:story_id/queries", cfg.StoryHandler.ListQueries)

    // Story outline
    api.GET("/story-outline/:story_outline_id", cfg.OutlineHandler.GetStoryOutline)
    api.PUT("/story-outline/:story_outline_id", cfg.OutlineHandler.UpdateStoryOutline)
    api.GET("/story-outline/:story_outline_id/chapters", cfg.OutlineHandler.ListChapters)

    // Chapter outline
    api.GET("/chapter-outline/:chapter_outline_id", cfg.OutlineHandler.GetChapterOutline)
    api.PUT("/chapter-outline/:chapter_outline_id", cfg.OutlineHandler.UpdateChapterOutline)
    api.GET("/chapter-outline/:chapter_outline_id/scene-outlines", cfg.OutlineHandler.ListSceneOutlines)

    // Scene outline and scene
    api.GET("/scene-outline/:scene_outline_id", cfg.SceneHandler.GetSceneOutline)
    api.PUT("/scene-outline/:scene_outline_id", cfg.SceneHandler.UpdateSceneOutline)
    api.GET("/scene-outline/:scene_outline_id/scene", cfg.SceneHandler.GetCurrentScene)
    api.GET("/scene/:scene_id", cfg.SceneHandler.GetScene)
    api.PUT("/scene/:scene_id", cfg.SceneHandler.UpdateScene)

    // Query log
    api.GET("/query/:query_id", cfg.QueryHandler.GetQuery)

    // Generation streams
    api.GET("/generate/story/:story_id", cfg.GenerateHandler.GenerateStory)
    api.GET("/generate/story-outline/:story_outline_id", cfg.GenerateHandler.GenerateStoryOutline)
    api.GET("/generate/chapter-outline/:chapter_outline_id", cfg.GenerateHandler.GenerateChapterOutline)
    api.GET("/generate/scene-outline/:scene_outline_id", cfg.GenerateHandler.GenerateSceneOutline)
    api.GET("/generate/scene/:scene_id", cfg.GenerateHandler.GenerateSceneText)

    // Entity update stream
    api.GET("/events", cfg.EventsHandler.Subscribe)
  }

  return router
}
