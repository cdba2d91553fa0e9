// purge.go — сервис удаления записей аудита.
//
// Единая точка для обоих сценариев purge: ручного (администратор через
// API) и автоматического (retention). Критерии разрешаются в предикат
// через query.PurgeCriteria.Resolve, удаление выполняется одной
// операцией хранилища, после чего кэш записей сбрасывается.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/auditlog-module/internal/domain/query"
	"github.com/bigkaa/auditlog-module/internal/repository"
)

// Происхождение запуска purge.
const (
	OriginManual    = "manual"
	OriginAutomatic = "automatic"
)

// Prometheus-метрики purge.
var (
	purgeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "al_purge_runs_total",
		Help: "Общее количество запусков purge по происхождению.",
	}, []string{"origin"})
	purgeDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "al_purge_deleted_total",
		Help: "Общее количество записей, удалённых purge.",
	})
	purgeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "al_purge_duration_seconds",
		Help:    "Длительность выполнения purge в секундах.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// PurgeResult — результат одного запуска purge.
type PurgeResult struct {
	// Deleted — количество удалённых записей
	Deleted int
	// Scope — человекочитаемое описание области удаления
	Scope string
	// Origin — происхождение запуска (manual, automatic)
	Origin string
	// Operator — идентификатор инициатора (subject JWT или "retention")
	Operator string
	// Duration — длительность выполнения
	Duration time.Duration
}

// PurgeService — сервис удаления записей аудита.
type PurgeService struct {
	repo   repository.LogRepository
	cache  *CacheService
	logger *slog.Logger
}

// NewPurgeService создаёт сервис purge.
func NewPurgeService(
	repo repository.LogRepository,
	cache *CacheService,
	logger *slog.Logger,
) *PurgeService {
	return &PurgeService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "purge_service")),
	}
}

// Purge разрешает критерии в предикат и удаляет совпадающие записи.
// Граница среза для older_than_days вычисляется один раз — в момент
// вызова, а не на каждую запись. Невалидные критерии дают
// query.ErrInvalidCriteria без каких-либо удалений.
func (s *PurgeService) Purge(ctx context.Context, criteria query.PurgeCriteria, origin, operator string) (*PurgeResult, error) {
	start := time.Now()

	filter, scope, err := criteria.Resolve(time.Now().UTC())
	if err != nil {
		return nil, err
	}

	deleted, err := s.repo.DeleteWhere(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Удалённые записи не должны оставаться читаемыми через кэш
	s.cache.Flush()

	result := &PurgeResult{
		Deleted:  deleted,
		Scope:    scope,
		Origin:   origin,
		Operator: operator,
		Duration: time.Since(start),
	}

	purgeRunsTotal.WithLabelValues(origin).Inc()
	purgeDeletedTotal.Add(float64(deleted))
	purgeDuration.Observe(result.Duration.Seconds())

	s.logger.Info("Purge завершён",
		slog.String("origin", origin),
		slog.String("operator", operator),
		slog.String("scope", scope),
		slog.Int("deleted", deleted),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}
