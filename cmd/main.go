package main

import (
  "fmt"
  "os"
  "github.com/yungbote/storygen-backend/internal/clients/openai"
  "github.com/yungbote/storygen-backend/internal/config"
  "github.com/yungbote/storygen-backend/internal/db"
  "github.com/yungbote/storygen-backend/internal/handlers"
  "github.com/yungbote/storygen-backend/internal/pkg/logger"
  "github.com/yungbote/storygen-backend/internal/repos"
  "github.com/yungbote/storygen-backend/internal/server"
  "github.com/yungbote/storygen-backend/internal/services"
  "github.com/yungbote/storygen-backend/internal/sse"
)

func main() {
  // Logger
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("Failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Config
  cfg, err := config.Load(log)
  if err != nil {
    log.Error("Could not load config", "error", err)
    os.Exit(1)
  }

  // Postgres
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("Postgres init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()

  // Repos
  log.Info("Setting up Repos from main...")
  userRepo := repos.NewUserRepo(thePG, log)
  storyRepo := repos.NewStoryRepo(thePG, log)
  storyOutlineRepo := repos.NewStoryOutlineRepo(thePG, log)
  chapterOutlineRepo := repos.NewChapterOutlineRepo(thePG, log)
  sceneOutlineRepo := repos.NewSceneOutlineRepo(thePG, log)
  sceneRepo := repos.NewSceneRepo(thePG, log)
  queryRepo := repos.NewQueryRepo(thePG, log)
  apiCallRepo := repos.NewApiCallRepo(thePG, log)

  // SSE
  log.Info("Setting up SSE hub now...")
  sseHub := sse.NewSSEHub(log)

  // Services
  log.Info("Setting up Services from main...")
  openaiClient, err := openai.NewClient(cfg, log)
  if err != nil {
    log.Error("Could not init OpenAI client", "error", err)
    os.Exit(1)
  }
  executor := services.NewExecutor(cfg, log, openaiClient, queryRepo, apiCallRepo, userRepo)
  generationService := services.NewGenerationService(
    cfg,
    log,
    executor,
    sseHub,
    storyRepo,
    storyOutlineRepo,
    chapterOutlineRepo,
    sceneOutlineRepo,
    sceneRepo,
  )
  libraryService := services.NewLibraryService(
    log,
    userRepo,
    storyRepo,
    storyOutlineRepo,
    chapterOutlineRepo,
    sceneOutlineRepo,
    sceneRepo,
    queryRepo,
    apiCallRepo,
  )

  // Handlers
  log.Info("Setting up handlers from main...")
  userHandler := handlers.NewUserHandler(log, libraryService)
  storyHandler := handlers.NewStoryHandler(log, libraryService)
  outlineHandler := handlers.NewOutlineHandler(log, libraryService)
  sceneHandler := handlers.NewSceneHandler(log, libraryService)
  queryHandler := handlers.NewQueryHandler(log, libraryService)
  generateHandler := handlers.NewGenerateHandler(log, generationService)
  eventsHandler := handlers.NewEventsHandler(log, sseHub)

  // Router
  log.Info("Setting up router from main...")
  router := server.NewRouter(server.RouterConfig{
    Log:             log,
    UserHandler:     userHandler,
    StoryHandler:    storyHandler,
    OutlineHandler:  outlineHandler,
    SceneHandler:    sceneHandler,
    QueryHandler:    queryHandler,
    GenerateHandler: generateHandler,
    EventsHandler:   eventsHandler,
  })

  fmt.Printf("Server listening on :%s\n", cfg.Port)
  if err := router.Run(":" + cfg.Port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
