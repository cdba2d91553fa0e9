// logs.go — обработчики приёма и выборки записей аудита.
// POST /api/v1/logs        — приём записи
// GET  /api/v1/logs        — выборка с фильтрами и пагинацией
// GET  /api/v1/logs/{logId} — запись по ID
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/auditlog-module/internal/api/errors"
	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
	"github.com/bigkaa/auditlog-module/internal/service"
)

// createLogRequest — тело запроса POST /api/v1/logs.
type createLogRequest struct {
	Service string `json:"service"`
	UserID  string `json:"user_id"`
	Action  string `json:"action"`
	Level   string `json:"level"`
	Details string `json:"details"`
}

// listLogsResponse — ответ GET /api/v1/logs.
// chronological_order всегда true: страница отсортирована по timestamp
// по возрастанию.
type listLogsResponse struct {
	Logs               []logEntry `json:"logs"`
	Total              int        `json:"total"`
	Filtered           int        `json:"filtered"`
	Limit              int        `json:"limit"`
	Offset             int        `json:"offset"`
	ChronologicalOrder bool       `json:"chronological_order"`
}

// CreateLog — реализация POST /api/v1/logs.
// Принимает кандидата на запись; валидация в domain-слое.
// 201 с сохранённой записью или 400 с перечислением проблем.
func (h *APIHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	var req createLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON в теле запроса")
		return
	}

	rec, err := h.logs.Record(r.Context(), &model.LogRecord{
		Service: req.Service,
		UserID:  req.UserID,
		Action:  req.Action,
		Level:   req.Level,
		Details: req.Details,
	})
	if err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			apierrors.ValidationError(w, vErr.Error())
			return
		}
		h.logger.Error("Ошибка сохранения записи аудита",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при сохранении записи")
		return
	}

	writeJSON(w, http.StatusCreated, logRecordToEntry(rec))
}

// ListLogs — реализация GET /api/v1/logs.
// Фильтры: service, level, user_id, action, start_date, end_date (YYYY-MM-DD,
// обе границы включительно). Пагинация: limit в [0, 1000] (по умолчанию 100,
// явный 0 — пустая страница с полными счётчиками), offset.
func (h *APIHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	spec := query.Spec{
		Service:   q.Get("service"),
		Level:     q.Get("level"),
		UserID:    q.Get("user_id"),
		Action:    q.Get("action"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
	}

	limit, err := intQueryParam(q.Get("limit"), "limit")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	spec.Limit = limit

	offset, err := intQueryParam(q.Get("offset"), "offset")
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}
	if offset != nil {
		spec.Offset = *offset
	}

	result, err := h.logs.List(r.Context(), spec)
	if err != nil {
		if errors.Is(err, service.ErrInvalidQuery) {
			apierrors.ValidationError(w, err.Error())
			return
		}
		h.logger.Error("Ошибка выборки записей аудита",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при выборке записей")
		return
	}

	writeJSON(w, http.StatusOK, listLogsResponse{
		Logs:               logRecordsToEntries(result.Items),
		Total:              result.Total,
		Filtered:           result.Filtered,
		Limit:              result.Limit,
		Offset:             result.Offset,
		ChronologicalOrder: true,
	})
}

// GetLog — реализация GET /api/v1/logs/{logId}.
func (h *APIHandler) GetLog(w http.ResponseWriter, r *http.Request) {
	logID := chi.URLParam(r, "logId")

	rec, err := h.logs.Get(r.Context(), logID)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Запись аудита не найдена")
			return
		}
		h.logger.Error("Ошибка получения записи аудита",
			slog.String("log_id", logID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при получении записи")
		return
	}

	writeJSON(w, http.StatusOK, logRecordToEntry(rec))
}

// intQueryParam разбирает целочисленный query-параметр.
// Пустая строка → nil (параметр не задан): явный 0 и отсутствие
// параметра различаются — для limit это разные значения.
func intQueryParam(val, name string) (*int, error) {
	if val == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return nil, errors.New(name + ": ожидается целое число")
	}
	return &n, nil
}
