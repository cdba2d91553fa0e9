// handler.go — основной обработчик API Audit Log Module.
// Объединяет health и бизнес-обработчики, содержит DTO и общие хелперы.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/service"
)

// APIHandler — основной обработчик API Audit Log Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	logs   *service.LogService
	purge  *service.PurgeService
	health *HealthHandler
	logger *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	logs *service.LogService,
	purge *service.PurgeService,
	health *HealthHandler,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		logs:   logs,
		purge:  purge,
		health: health,
		logger: logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- DTO ---

// logEntry — запись аудита в API-представлении.
type logEntry struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
	UserID    string `json:"user_id,omitempty"`
	Action    string `json:"action"`
	Level     string `json:"level"`
	Details   string `json:"details,omitempty"`
}

// logRecordToEntry конвертирует domain-запись в API-представление.
func logRecordToEntry(rec *model.LogRecord) logEntry {
	return logEntry{
		ID:        rec.ID,
		Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
		Service:   rec.Service,
		UserID:    rec.UserID,
		Action:    rec.Action,
		Level:     rec.Level,
		Details:   rec.Details,
	}
}

// logRecordsToEntries конвертирует страницу записей.
func logRecordsToEntries(records []*model.LogRecord) []logEntry {
	entries := make([]logEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, logRecordToEntry(r))
	}
	return entries
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
