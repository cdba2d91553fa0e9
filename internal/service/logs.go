// logs.go — сервис приёма и выборки записей аудита.
// Координирует repository, LRU cache и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
	"github.com/bigkaa/auditlog-module/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrInvalidQuery — некорректные параметры выборки.
	ErrInvalidQuery = errors.New("некорректные параметры запроса")
)

// Prometheus-метрики записей аудита.
var (
	logsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "al_logs_recorded_total",
		Help: "Общее количество принятых записей аудита по уровням.",
	}, []string{"level"})
	logsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "al_logs_rejected_total",
		Help: "Общее количество отклонённых при валидации записей.",
	})
	queriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "al_queries_total",
		Help: "Общее количество запросов выборки записей.",
	})
	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "al_query_duration_seconds",
		Help:    "Длительность запросов выборки.",
		Buckets: prometheus.DefBuckets,
	})
)

// ListResult — результат выборки с пагинацией.
type ListResult struct {
	// Items — страница записей в хронологическом порядке
	Items []*model.LogRecord
	// Total — общее количество записей в хранилище (без фильтров)
	Total int
	// Filtered — полное количество совпадений с фильтрами
	Filtered int
	// Limit — нормализованный лимит страницы
	Limit int
	// Offset — текущее смещение
	Offset int
}

// LogService — сервис приёма и выборки записей аудита.
type LogService struct {
	repo   repository.LogRepository
	cache  *CacheService
	logger *slog.Logger
}

// NewLogService создаёт сервис записей аудита.
func NewLogService(
	repo repository.LogRepository,
	cache *CacheService,
	logger *slog.Logger,
) *LogService {
	return &LogService{
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "log_service")),
	}
}

// Record принимает кандидата на запись аудита.
// Валидация и назначение ID/timestamp выполняются в репозитории;
// ошибка валидации (*model.ValidationError) возвращается как есть.
func (s *LogService) Record(ctx context.Context, candidate *model.LogRecord) (*model.LogRecord, error) {
	rec, err := s.repo.Insert(ctx, candidate)
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			logsRejectedTotal.Inc()
		}
		return nil, err
	}

	logsRecordedTotal.WithLabelValues(rec.Level).Inc()

	s.logger.Debug("Запись аудита принята",
		slog.String("id", rec.ID),
		slog.String("service", rec.Service),
		slog.String("action", rec.Action),
		slog.String("level", rec.Level),
	)
	return rec, nil
}

// List выполняет выборку записей по пользовательским фильтрам.
// Строит план через query.BuildPlan; некорректные фильтры дают
// ErrInvalidQuery. Возвращает страницу, полное количество совпадений
// и общее количество записей в хранилище.
func (s *LogService) List(ctx context.Context, spec query.Spec) (*ListResult, error) {
	start := time.Now()
	queriesTotal.Inc()

	plan, err := query.BuildPlan(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidQuery, err)
	}

	items, filtered, err := s.repo.Find(ctx, repository.Query{
		Filter: plan.Filter,
		Order:  plan.Order,
		Limit:  plan.Limit,
		Offset: plan.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("выборка записей аудита: %w", err)
	}

	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("подсчёт записей аудита: %w", err)
	}

	duration := time.Since(start)
	queryDuration.Observe(duration.Seconds())

	s.logger.Debug("Выборка выполнена",
		slog.Int("total", total),
		slog.Int("filtered", filtered),
		slog.Int("returned", len(items)),
		slog.Duration("duration", duration),
	)

	return &ListResult{
		Items:    items,
		Total:    total,
		Filtered: filtered,
		Limit:    plan.Limit,
		Offset:   plan.Offset,
	}, nil
}

// Get возвращает запись аудита по ID.
// Сначала проверяет LRU-кэш, при промахе — запрос к хранилищу,
// результат кэшируется.
func (s *LogService) Get(ctx context.Context, id string) (*model.LogRecord, error) {
	if rec, ok := s.cache.Get(id); ok {
		s.logger.Debug("Кэш hit для записи", slog.String("id", id))
		return rec, nil
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи аудита: %w", err)
	}

	s.cache.Set(id, rec)
	return rec, nil
}
