package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"surveyserver/internal/config"
	"surveyserver/internal/container"
)

func main() {
	log.Println("Запуск Survey Mapping Server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	logger := newLogger(cfg.LogLevel)

	c, err := container.New(cfg, logger)
	if err != nil {
		log.Fatalf("Ошибка сборки контейнера: %v", err)
	}
	defer c.Close()

	logger.Info("store initialized", "backend", cfg.StoreBackend)

	// Восстановление кэша из среза ограничено дедлайном:
	// медленный или битый срез не задерживает старт
	restored := c.CachedEngine.RestoreSnapshot(context.Background(), c.SnapshotStore, cfg.SnapshotRestoreTimeout)
	logger.Info("cache restored from snapshot", "entries", restored)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Router.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Ошибка запуска сервера: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	// Срез кэша снимается после остановки приема запросов,
	// чтобы не зафиксировать состояние посреди мутации
	if err := c.CachedEngine.SaveSnapshot(ctx, c.SnapshotStore); err != nil {
		logger.Error("cache snapshot save failed", "error", err)
	}

	logger.Info("server stopped")
}

// newLogger создает slog логгер с уровнем из конфигурации
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
