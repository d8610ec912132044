package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shortify/internal/config"
	"github.com/SergeiKhy/shortify/internal/handler"
	"github.com/SergeiKhy/shortify/internal/middleware"
	"github.com/SergeiKhy/shortify/internal/migrations"
	"github.com/SergeiKhy/shortify/internal/repository"
	"github.com/SergeiKhy/shortify/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	// Миграции до открытия пула
	if cfg.DB.Migrate {
		if err := runMigrations(cfg.DB, logger); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	linkRepo := repository.NewLinkRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)
	clickRepo := repository.NewClickRepository(db)

	// Инициализация сервисов
	linkService := service.NewLinkService(linkRepo, cacheRepo, logger, service.WithCacheTTL(cfg.Redis.CacheTTL))
	analyticsService := service.NewAnalyticsService(linkRepo, clickRepo, logger)

	// Инициализация записи кликов (Worker Pool)
	recorder := service.NewClickRecorder(clickRepo, service.ClickRecorderConfig{
		Workers:    cfg.Clicks.Workers,
		BufferSize: cfg.Clicks.BufferSize,
		Timeout:    cfg.Clicks.Timeout,
	}, logger)
	recorder.Start()

	auth := middleware.NewAPIKeyAuth(cfg.Auth.APIKeys, logger)
	if auth.Enabled() {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	} else {
		logger.Warn("API_KEYS is empty, admin endpoints are not protected")
	}

	if cfg.App.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка роутера
	router := handler.NewRouter(handler.RouterDeps{
		Links:     linkService,
		Analytics: analyticsService,
		Recorder:  recorder,
		Auth:      auth,
		Health: map[string]handler.Pinger{
			"postgres": db,
			"redis":    redis,
		},
		BaseURL: cfg.App.BaseURL,
		Logger:  logger,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Новых редиректов больше нет: дописываем клики из очереди до закрытия пула БД
	recorder.Stop()

	logger.Info("Server exited")
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runMigrations(cfg config.DBConfig, logger *zap.Logger) error {
	migrator, err := migrations.New(cfg.DSN(), logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	return migrator.Up()
}
