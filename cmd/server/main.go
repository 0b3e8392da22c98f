package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chess-backend/configs"
	"chess-backend/internal/aggregator"
	"chess-backend/internal/analyzer"
	"chess-backend/internal/enginepool"
	"chess-backend/internal/handlers"
	"chess-backend/internal/jobs"
	"chess-backend/internal/middleware"
	"chess-backend/internal/puzzles"
	"chess-backend/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := configs.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	store, err := storage.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	if err != nil {
		logrus.Fatalf("storage: %v", err)
	}
	defer store.Close()

	pool, err := enginepool.New(cfg.Engine.BinaryPath, cfg.Engine.MaxWorkers, map[string]string{
		"Threads": fmt.Sprintf("%d", cfg.Engine.Threads),
		"Hash":    fmt.Sprintf("%d", cfg.Engine.HashSizeMB),
	})
	if err != nil {
		logrus.Fatalf("engine pool: %v", err)
	}

	az := analyzer.New(pool)
	extractor := puzzles.New(pool, cfg.Engine.DefaultDepth)
	jobManager := jobs.New(store, az, extractor)
	agg := aggregator.New(store)

	janitorCtx, cancelJanitor := context.WithCancel(context.Background())
	defer cancelJanitor()
	go runJanitor(janitorCtx, jobManager)

	if cfg.App.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-Id"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.Use(middleware.RateLimit(cfg.RateLimit))

	healthHandler := handlers.NewHealthHandler(store, pool)
	pipelineHandler := handlers.NewPipelineHandler(jobManager, store)
	puzzleHandler := handlers.NewPuzzleHandler(store)
	insightsHandler := handlers.NewInsightsHandler(agg)

	api := router.Group("/api")
	{
		api.GET("/health", healthHandler.Health)
		api.GET("/ready", healthHandler.Ready)
		api.GET("/stats", healthHandler.Stats)

		analysisGroup := api.Group("/analysis")
		{
			analysisGroup.POST("/start", pipelineHandler.StartAnalysis)
			analysisGroup.GET("/job/:id", pipelineHandler.JobStatus)
			analysisGroup.POST("/run", pipelineHandler.RunAnalysisStream)
			analysisGroup.GET("/game/:id", pipelineHandler.GameDetail)
		}

		puzzlesGroup := api.Group("/puzzles")
		{
			puzzlesGroup.GET("", puzzleHandler.ListPuzzles)
			puzzlesGroup.GET("/global", puzzleHandler.ListGlobalPuzzles)
			puzzlesGroup.GET("/review-queue", puzzleHandler.ReviewQueue)
			puzzlesGroup.GET("/streak", puzzleHandler.GetStreak)
			puzzlesGroup.POST("/:id/attempt", puzzleHandler.RecordAttempt)
		}

		insightsGroup := api.Group("/insights")
		{
			insightsGroup.GET("/overview", insightsHandler.Overview)
			insightsGroup.GET("/skill-radar", insightsHandler.SkillRadar)
			insightsGroup.GET("/weaknesses", insightsHandler.Weaknesses)
			insightsGroup.GET("/time-pressure", insightsHandler.TimePressure)
			insightsGroup.GET("/piece-performance", insightsHandler.PiecePerformance)
			insightsGroup.GET("/population", insightsHandler.PopulationPercentile)
			insightsGroup.GET("/persona", insightsHandler.Persona)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logrus.Infof("starting server on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down server...")
	cancelJanitor()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("server forced to shutdown: %v", err)
	}
	pool.Shutdown(ctx)

	logrus.Info("server exited")
}

// runJanitor periodically sweeps stale in-flight jobs (§5).
func runJanitor(ctx context.Context, jm *jobs.Manager) {
	ticker := time.NewTicker(jobs.JanitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			jm.SweepStale(ctx, now)
		}
	}
}
