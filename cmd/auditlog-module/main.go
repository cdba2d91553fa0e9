// Точка входа Audit Log Module — сервис приёма, выборки и очистки записей аудита.
// Загружает конфигурацию, подключается к хранилищу (PostgreSQL или in-memory),
// применяет миграции, создаёт сервисный слой и API handlers, запускает
// фоновый retention-таймер и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/bigkaa/auditlog-module/internal/api/handlers"
	"github.com/bigkaa/auditlog-module/internal/api/middleware"
	"github.com/bigkaa/auditlog-module/internal/config"
	"github.com/bigkaa/auditlog-module/internal/database"
	"github.com/bigkaa/auditlog-module/internal/repository"
	"github.com/bigkaa/auditlog-module/internal/server"
	"github.com/bigkaa/auditlog-module/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Audit Log Module запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.Store),
	)

	ctx := context.Background()

	// 3. Хранилище: PostgreSQL или in-memory
	var (
		repo         repository.LogRepository
		storeChecker handlers.ReadinessChecker
	)

	switch cfg.Store {
	case config.StorePostgres:
		// 3.1 Применение миграций БД
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
			os.Exit(1)
		}

		// 3.2 Подключение к PostgreSQL (pgxpool)
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer pool.Close()

		repo = repository.NewLogRepository(pool)
		storeChecker = database.NewReadinessChecker(pool)

	case config.StoreMemory:
		logger.Warn("Используется in-memory хранилище: записи не переживут рестарт")
		repo = repository.NewMemoryRepository()
		storeChecker = nil
	}

	// 4. Сервисный слой
	cache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	logsSvc := service.NewLogService(repo, cache, logger)
	purgeSvc := service.NewPurgeService(repo, cache, logger)

	// 5. Фоновый retention-таймер: ежедневное удаление записей старше
	// AL_RETENTION_DAYS в момент AL_PURGE_TIME (UTC)
	retentionSvc := service.NewRetentionService(
		purgeSvc,
		cfg.RetentionDays,
		cfg.PurgeHour, cfg.PurgeMinute,
		logger,
	)

	// 6. JWT middleware (Keycloak JWKS)
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.JWTIssuer,
		cfg.RoleAdminGroups,
		cfg.JWTGroupsClaim,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 7. API handlers
	healthHandler := handlers.NewHealthHandler(storeChecker)
	apiHandler := handlers.NewAPIHandler(logsSvc, purgeSvc, healthHandler, logger)

	// 8. Запуск фоновых задач
	retentionSvc.Start(ctx)
	logger.Info("Retention-таймер запущен",
		slog.Int("retention_days", cfg.RetentionDays),
		slog.Int("purge_hour", cfg.PurgeHour),
		slog.Int("purge_minute", cfg.PurgeMinute),
	)

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, jwtAuth)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Graceful shutdown фоновых задач
	logger.Info("Останавливаем фоновые задачи...")
	retentionSvc.Stop()

	logger.Info("Audit Log Module остановлен")
}
