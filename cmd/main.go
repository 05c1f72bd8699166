package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ragviet-backend/internal/ai"
	"ragviet-backend/internal/config"
	"ragviet-backend/internal/logger"
	"ragviet-backend/internal/telemetry"
	"ragviet-backend/internal/vectorstore"
	"ragviet-backend/middleware"
	"ragviet-backend/routes"
	"ragviet-backend/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Connect to Redis (sessions, OTP, rate limiting)
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Asynq client enqueues OTP emails for the worker process
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Warm the vector index from the last snapshot
	store := vectorstore.New()
	if err := store.Load(cfg.SnapshotPath); err != nil {
		logger.Warn("no vector snapshot loaded, starting empty", "path", cfg.SnapshotPath, "error", err)
	} else {
		logger.Info("vector snapshot loaded", "chunks", store.Len(), "dimension", store.Dimension())
	}

	// AI clients
	embedder, err := ai.NewEmbedder(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedder:", err)
	}
	reranker := ai.NewReranker(cfg)
	llm := ai.NewLLM(cfg)

	// Services
	pdfService := services.NewPDFService(cfg)
	blobService, err := services.NewBlobService(cfg)
	if err != nil {
		log.Fatal("Failed to initialize blob storage:", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := blobService.EnsureBucket(ctx); err != nil {
			cancel()
			log.Fatal("Failed to prepare blob bucket:", err)
		}
		cancel()
	}
	chatService := services.NewChatService(db)
	authService := services.NewAuthService(cfg, chatService, rdb, queueClient)
	ingestService := services.NewIngestService(cfg, pdfService, blobService, chatService, embedder, store)
	answerService := services.NewAnswerService(cfg, chatService, embedder, reranker, llm, store)
	exportService := services.NewExportService(chatService)

	cronService := services.NewCronService(cfg, store)
	if err := cronService.Start(); err != nil {
		log.Fatal("Failed to start snapshot scheduler:", err)
	}

	// Tracing
	shutdownTracer, err := telemetry.InitTracer("ragviet-backend")
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		shutdownTracer = func() {}
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	// Local-disk blob mode serves stored PDFs straight from disk
	if cfg.BlobEndpoint == "" {
		router.Static("/static/blobs", cfg.BlobLocalDir)
	}

	// Setup routes
	routes.SetupAuthRoutes(router, cfg, authService, chatService)
	routes.SetupChatRoutes(router, authService, answerService, chatService)
	routes.SetupFileRoutes(router, authService, ingestService, chatService, blobService)
	routes.SetupAdminRoutes(router, cfg, authService, chatService, exportService, store)

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	// Final snapshot before exit
	cronService.Stop()
	shutdownTracer()

	log.Println("Server exited")
}
