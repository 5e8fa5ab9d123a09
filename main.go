package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"simulation-service/internal/cache"
	"simulation-service/internal/config"
	"simulation-service/internal/db"
	"simulation-service/internal/event"
	"simulation-service/internal/handlers"
	"simulation-service/internal/repository"
	"simulation-service/internal/service"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}
	cfg := config.Load()
	if cfg.MongoDB.URI == "" {
		log.Fatal("MONGO_URI is required")
	}

	mongoClient, err := db.Connect(context.Background(), cfg.MongoDB)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	database := mongoClient.Database(cfg.MongoDB.Database)

	// Redis-backed caches; the service degrades to durable-only when Redis
	// is down.
	redisClient := cache.NewRedisClient(cfg.Redis)
	sessionCache := cache.New(redisClient)

	// RabbitMQ completion-event publisher
	var publisher *event.Publisher
	if cfg.RabbitMQ.URI != "" {
		publisher, err = event.NewPublisher(cfg.RabbitMQ.URI, cfg.RabbitMQ.Exchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
	} else {
		log.Println("RabbitMQ not configured, completion events will not be published")
	}

	caseRepo := repository.NewCaseRepository(database)
	sessionRepo := repository.NewSessionRepository(database)
	statsRepo := repository.NewStatsRepository(database)

	statsService := service.NewStatsService(
		sessionRepo,
		statsRepo,
		caseRepo,
		sessionCache,
		cfg.Cache.PerformanceTTL,
	)

	var completionPublisher service.CompletionPublisher
	if publisher != nil {
		completionPublisher = publisher
	}
	sessionService := service.NewSessionService(
		caseRepo,
		sessionRepo,
		sessionCache,
		statsService,
		completionPublisher,
		cfg.Cache.SessionTTL,
	)

	sessionHandler := handlers.NewSessionHandler(sessionService)
	statsHandler := handlers.NewStatsHandler(statsService)
	caseHandler := handlers.NewCaseHandler(caseRepo)

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	sessions := r.Group("/simulation/sessions")
	{
		sessions.POST("/", sessionHandler.StartSession)
		sessions.GET("/:id", sessionHandler.GetSession)
		sessions.GET("/:id/progress", sessionHandler.GetProgress)
		sessions.POST("/:id/steps", sessionHandler.SubmitStep)
		sessions.POST("/:id/pause", sessionHandler.PauseSession)
		sessions.POST("/:id/resume", sessionHandler.ResumeSession)
		sessions.POST("/:id/abandon", sessionHandler.AbandonSession)
		sessions.POST("/:id/feedback", sessionHandler.AttachFeedback)
	}

	cases := r.Group("/simulation/cases")
	{
		cases.POST("/:caseId/publish", caseHandler.PublishCase)
	}

	stats := r.Group("/simulation/stats")
	{
		stats.GET("/case/:caseId", statsHandler.GetCaseStats)
		stats.POST("/case/:caseId/recompute", statsHandler.RecomputeCaseStats)
		stats.GET("/me/performance", statsHandler.GetUserPerformance)
	}

	port := cfg.Server.Port
	log.Printf("simulation-service listening on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
