// purge.go — обработчик POST /api/v1/purge.
// Ручное удаление записей аудита администратором. Критерии валидируются
// синхронно, само удаление выполняется асинхронно: клиент получает 202
// сразу, не дожидаясь обхода хранилища.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/bigkaa/auditlog-module/internal/api/errors"
	"github.com/bigkaa/auditlog-module/internal/api/middleware"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
	"github.com/bigkaa/auditlog-module/internal/service"
)

// purgeRequest — тело запроса POST /api/v1/purge.
// Критерии вложены под ключом criteria; ровно один режим:
// delete_all > older_than_days > service (по приоритету).
type purgeRequest struct {
	Criteria purgeCriteriaBody `json:"criteria"`
}

// purgeCriteriaBody — режимы purge внутри criteria.
type purgeCriteriaBody struct {
	DeleteAll     bool    `json:"delete_all"`
	OlderThanDays *int    `json:"older_than_days"`
	Service       *string `json:"service"`
}

// purgeAcceptedResponse — ответ 202 Accepted.
type purgeAcceptedResponse struct {
	Status  string `json:"status"`
	Scope   string `json:"scope"`
	Message string `json:"message"`
}

// PurgeLogs — реализация POST /api/v1/purge.
// Авторизация: RequireAdmin — на уровне middleware.
func (h *APIHandler) PurgeLogs(w http.ResponseWriter, r *http.Request) {
	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	criteria := query.PurgeCriteria{
		DeleteAll:     req.Criteria.DeleteAll,
		OlderThanDays: req.Criteria.OlderThanDays,
		Service:       req.Criteria.Service,
	}

	// Синхронная валидация критериев: невалидные — 400 до постановки
	// задачи. Само разрешение в предикат повторится в момент удаления.
	_, scope, err := criteria.Resolve(time.Now().UTC())
	if err != nil {
		if errors.Is(err, query.ErrInvalidCriteria) {
			apierrors.InvalidCriteria(w,
				"Критерии purge не заданы: укажите delete_all, older_than_days или service")
			return
		}
		apierrors.InternalError(w, "Внутренняя ошибка при разборе критериев")
		return
	}

	// Инициатор — субъект JWT
	operator := "unknown"
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		operator = claims.Operator()
	}

	h.logger.Info("Принят запрос ручного purge",
		slog.String("operator", operator),
		slog.String("scope", scope),
	)

	// Асинхронное выполнение: контекст запроса умрёт вместе с ответом,
	// поэтому удаление идёт с собственным фоновым контекстом.
	go func() {
		if _, err := h.purge.Purge(context.Background(), criteria, service.OriginManual, operator); err != nil {
			h.logger.Error("Ошибка асинхронного purge",
				slog.String("operator", operator),
				slog.String("error", err.Error()),
			)
		}
	}()

	writeJSON(w, http.StatusAccepted, purgeAcceptedResponse{
		Status:  "accepted",
		Scope:   scope,
		Message: "Удаление записей запущено",
	})
}
