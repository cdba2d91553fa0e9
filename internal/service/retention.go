// retention.go — фоновый сервис автоматического retention-purge.
//
// Раз в сутки, в настроенное время (UTC), удаляет записи старше
// срока хранения. Запускается как горутина при старте приложения.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/auditlog-module/internal/domain/query"
)

// RetentionService — фоновый сервис retention-purge.
type RetentionService struct {
	purge         *PurgeService
	retentionDays int
	hour          int
	minute        int
	logger        *slog.Logger

	mu     sync.Mutex // защита от параллельного запуска RunOnce
	cancel context.CancelFunc

	// now — источник времени; подменяется в тестах.
	now func() time.Time
}

// NewRetentionService создаёт сервис retention.
// retentionDays — срок хранения записей в днях.
// hour, minute — время ежедневного запуска (UTC).
func NewRetentionService(
	purge *PurgeService,
	retentionDays int,
	hour, minute int,
	logger *slog.Logger,
) *RetentionService {
	return &RetentionService{
		purge:         purge,
		retentionDays: retentionDays,
		hour:          hour,
		minute:        minute,
		logger:        logger.With(slog.String("component", "retention")),
		now:           time.Now,
	}
}

// Start запускает фоновую горутину retention.
// Вызывается один раз при старте приложения.
func (r *RetentionService) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.run(runCtx)

	r.logger.Info("Retention запущен",
		slog.Int("retention_days", r.retentionDays),
		slog.String("purge_time", time.Date(0, 1, 1, r.hour, r.minute, 0, 0, time.UTC).Format("15:04")),
	)
}

// Stop останавливает фоновый процесс retention.
func (r *RetentionService) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.logger.Info("Retention остановлен")
}

// run — основной цикл фоновой горутины: ждёт следующего времени
// запуска, выполняет purge, планирует следующий.
func (r *RetentionService) run(ctx context.Context) {
	for {
		next := r.nextRun(r.now().UTC())
		timer := time.NewTimer(time.Until(next))

		r.logger.Debug("Следующий retention-purge запланирован",
			slog.Time("next_run", next),
		)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один цикл retention-purge.
// Потокобезопасен: mutex защищает от параллельного запуска.
func (r *RetentionService) RunOnce(ctx context.Context) *PurgeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	days := r.retentionDays
	result, err := r.purge.Purge(ctx,
		query.PurgeCriteria{OlderThanDays: &days},
		OriginAutomatic, "retention",
	)
	if err != nil {
		r.logger.Error("Ошибка retention-purge",
			slog.String("error", err.Error()),
		)
		return nil
	}
	return result
}

// nextRun возвращает ближайший момент запуска строго после now:
// сегодня в hour:minute UTC, либо завтра, если время уже прошло.
func (r *RetentionService) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), r.hour, r.minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
