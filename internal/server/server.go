// Пакет server — HTTP-сервер Audit Log Module с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/auditlog-module/internal/api/errors"
	"github.com/bigkaa/auditlog-module/internal/api/handlers"
	"github.com/bigkaa/auditlog-module/internal/api/middleware"
	"github.com/bigkaa/auditlog-module/internal/config"
)

// Server — HTTP-сервер Audit Log Module.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// auth может быть nil (dev-режим без Keycloak) — тогда /api/v1/purge
// закрыт полностью: без аутентификации ручной purge недоступен.
func New(cfg *config.Config, logger *slog.Logger, h *handlers.APIHandler, auth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Служебные endpoints — без аутентификации
	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	// Приём и выборка записей — доверенная внутренняя сеть,
	// аутентификацию выполняет API Gateway
	router.Post("/api/v1/logs", h.CreateLog)
	router.Get("/api/v1/logs", h.ListLogs)
	router.Get("/api/v1/logs/{logId}", h.GetLog)

	// Ручной purge — только администраторы (JWT + группа)
	router.Group(func(r chi.Router) {
		if auth != nil {
			r.Use(auth.Middleware())
			r.Use(middleware.RequireAdmin())
		} else {
			r.Use(denyAll(logger))
		}
		r.Post("/api/v1/purge", h.PurgeLogs)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// denyAll — заглушка авторизации: отклоняет все запросы с 401.
// Используется, когда JWT middleware не сконфигурирован.
func denyAll(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(_ http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("Запрос к закрытому endpoint без настроенной аутентификации",
				slog.String("path", r.URL.Path),
			)
			apierrors.Unauthorized(w, "Аутентификация не настроена")
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
