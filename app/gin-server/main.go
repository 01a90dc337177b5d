package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/danastri/meetscribe/config"
	"github.com/danastri/meetscribe/internal/api/handlers"
	"github.com/danastri/meetscribe/internal/api/middleware"
	"github.com/danastri/meetscribe/internal/api/routes"
	"github.com/danastri/meetscribe/internal/bot"
	"github.com/danastri/meetscribe/internal/cache"
	"github.com/danastri/meetscribe/internal/logger"
	"github.com/danastri/meetscribe/internal/models"
	"github.com/danastri/meetscribe/internal/providers/diarize"
	"github.com/danastri/meetscribe/internal/providers/llm"
	"github.com/danastri/meetscribe/internal/providers/stt"
	mongorepo "github.com/danastri/meetscribe/internal/repositories/mongo"
	pgrepo "github.com/danastri/meetscribe/internal/repositories/postgres"
	"github.com/danastri/meetscribe/internal/services"
	"github.com/danastri/meetscribe/internal/stopflag"
	"github.com/danastri/meetscribe/internal/storage"
	"github.com/danastri/meetscribe/internal/workers"
)

func main() {
	_ = godotenv.Load()
	appLog := logger.New()
	ctx := context.Background()

	if err := config.InitPostgres(); err != nil {
		log.Fatalf("PostgreSQL init error: %v", err)
	}
	appLog.Info("PostgreSQL connected")

	if err := config.InitMongo(); err != nil {
		log.Fatalf("MongoDB init error: %v", err)
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.Fatalf("MongoDB index error: %v", err)
	}
	appLog.Info("MongoDB connected")

	if err := config.InitRedis(); err != nil {
		log.Fatalf("Redis init error: %v", err)
	}
	appLog.Info("Redis connected")

	if err := config.PostgresDB.AutoMigrate(&models.User{}, &models.Transcript{}); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	users := pgrepo.NewUserRepo(config.PostgresDB)
	transcriptRepo := pgrepo.NewTranscriptRepo(config.PostgresDB)
	botSessions := mongorepo.NewBotSessionRepo(config.MongoDB())

	engine, err := buildSTTEngine(ctx)
	if err != nil {
		log.Fatalf("STT engine init error: %v", err)
	}
	defer engine.Close()

	var diarizer diarize.Diarizer
	if url := os.Getenv("DIARIZER_URL"); url != "" {
		diarizer = diarize.NewPyannote(url)
	}

	var summarizer llm.Summarizer
	if project := os.Getenv("GCP_PROJECT"); project != "" {
		summarizer, err = llm.NewVertexGemini(ctx, project, envOr("GCP_LOCATION", "us-central1"), os.Getenv("VERTEX_MODEL"))
		if err != nil {
			log.Fatalf("Vertex init error: %v", err)
		}
		defer summarizer.Close()
	}

	var archive storage.Uploader
	var signer storage.Signer
	if bucket := os.Getenv("GCS_BUCKET"); bucket != "" {
		u, err := storage.NewGCSUploader(ctx, bucket)
		if err != nil {
			log.Fatalf("GCS init error: %v", err)
		}
		defer u.Close()
		archive = u
		signer = u
	}

	pool := &workers.TranscribeWorkerPool{
		Redis:       config.RedisClient,
		Transcripts: transcriptRepo,
		Engine:      engine,
		Diarizer:    diarizer,
		Summarizer:  summarizer,
		Archive:     archive,
		Logger:      appLog,
	}
	if err := pool.Start(ctx); err != nil {
		log.Fatalf("worker pool error: %v", err)
	}

	runDir := envOr("BOT_RUN_DIR", "./data/bots")
	supervisor := bot.NewSupervisor(
		envOr("BOT_RUNNER_BIN", "./bot-runner"),
		runDir,
		stopflag.NewRedisFlag(config.RedisClient),
		appLog,
	)

	authSvc := services.NewAuthService(users, os.Getenv("JWT_SECRET"), 0)
	transcriptSvc := services.NewTranscriptService(transcriptRepo, pool,
		cache.NewRedisCache(config.RedisClient), signer, envOr("UPLOAD_DIR", "./data/uploads"))
	botSvc := services.NewBotService(botSessions, supervisor, transcriptSvc)

	r := gin.New()
	r.Use(middleware.RequestLogger(appLog), gin.Recovery())

	routes.RegisterRoutes(r, routes.Deps{
		Auth:       handlers.NewAuthHandler(authSvc),
		Transcript: handlers.NewTranscriptHandler(transcriptSvc),
		Bot:        handlers.NewBotHandler(botSvc),
		WS:         handlers.NewWSHandler(botSvc, transcriptSvc, config.RedisClient),
	})

	port := envOr("PORT", "8080")
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func buildSTTEngine(ctx context.Context) (stt.Engine, error) {
	if os.Getenv("STT_ENGINE") == "google" {
		return stt.NewGoogleSpeech(ctx)
	}
	return stt.NewFasterWhisper(envOr("WHISPER_URL", "http://localhost:9090")), nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
