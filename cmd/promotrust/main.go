// Package main запускает HTTP-сервер платформы доверия промоутеров.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nicolasromanina/immo-backend-sub004/internal/config"
	"github.com/nicolasromanina/immo-backend-sub004/internal/handler"
	"github.com/nicolasromanina/immo-backend-sub004/internal/middleware"
	"github.com/nicolasromanina/immo-backend-sub004/internal/notifier"
	"github.com/nicolasromanina/immo-backend-sub004/internal/repository"
	"github.com/nicolasromanina/immo-backend-sub004/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var notifierClient *notifier.Client
	if cfg.NotifierAddress != "" {
		notifierClient = notifier.NewClient(cfg.NotifierAddress)
	}

	svc := service.NewService(repo, notifierClient, logger)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	adminMiddleware := middleware.NewAdminMiddleware(cfg.AdminToken)
	h := handler.NewHandler(svc, logger, authMiddleware, adminMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фоновых проверок: санкции, ограничения, бейджи, апелляции
	g.Go(func() error {
		svc.StartSweeps(ctx, cfg.SweepInterval)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting promotrust server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
