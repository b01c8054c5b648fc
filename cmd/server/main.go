package main

import (
	"alcyxob/workout-chat/internal/api"
	"alcyxob/workout-chat/internal/config"
	"alcyxob/workout-chat/internal/generator"
	"alcyxob/workout-chat/internal/repository/mongo"
	"alcyxob/workout-chat/internal/service"
	"alcyxob/workout-chat/internal/storage"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// @title Workout Chat API
// @version 1.0
// @description Chat driven workout generation for training units.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		zap.NewExample().Fatal("Could not load config", zap.Error(err))
	}

	logger, _ := zap.NewProduction()
	if cfg.Log.Development {
		logger, _ = zap.NewDevelopment()
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	defer logger.Sync()
	logger.Info("Starting workout chat server")

	if cfg.JWT.Secret == "" {
		logger.Fatal("jwt.secret (JWT_SECRET) must be set")
	}
	if cfg.OpenAI.APIKey == "" {
		logger.Fatal("openai.api_key (OPENAI_API_KEY) must be set")
	}

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		logger.Fatal("Could not connect to MongoDB", zap.Error(err))
	}
	defer func() {
		logger.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			logger.Error("Failed to disconnect MongoDB", zap.Error(err))
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	logger.Info("Database connection established", zap.String("database", cfg.Database.Name))

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		mongo.EnsureIndexes(ctx, appDB, logger)
		logger.Info("Index creation process completed")
	}()

	// --- Plan archive storage (optional) ---
	var planStorage storage.PlanStorage
	if cfg.S3.Enabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		planStorage, err = storage.NewS3Storage(ctx, cfg.S3, logger)
		cancel()
		if err != nil {
			logger.Fatal("Failed to initialize S3 storage", zap.Error(err))
		}
	} else {
		logger.Info("S3 bucket not configured, plan archiving disabled")
	}

	// --- Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	unitRepo := mongo.NewMongoUnitRepository(appDB)
	workoutRepo := mongo.NewMongoWorkoutRepository(appDB)
	quotaRepo := mongo.NewMongoQuotaRepository(appDB)
	archiveRepo := mongo.NewMongoPlanArchiveRepository(appDB)

	// --- Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, logger.Named("auth"))
	workoutService := service.NewWorkoutService(unitRepo, workoutRepo, archiveRepo, planStorage, logger.Named("workouts"))
	gen := generator.NewOpenAIGenerator(cfg.OpenAI, logger.Named("generator"))
	chatService := service.NewChatService(workoutService, quotaRepo, gen, cfg.Chat.DailyMessageLimit, cfg.Chat.HistoryLimit, logger.Named("chat"))

	// --- Gin Engine ---
	router := gin.New()
	router.Use(gin.Recovery(), api.RequestLogger(logger.Named("http")))
	api.SetupRoutes(router, cfg.JWT.Secret, authService, workoutService, chatService, logger.Named("api"))

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("ListenAndServe error", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting")
}
