package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/auditlog-module/internal/repository"
	"github.com/bigkaa/auditlog-module/internal/service"
)

// testEnv — собранный API поверх in-memory хранилища.
type testEnv struct {
	router *chi.Mux
	repo   *repository.MemoryRepository
}

// newTestEnv собирает обработчики и маршруты для тестов.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := repository.NewMemoryRepository()
	cache := service.NewCacheService(16, time.Minute)
	logSvc := service.NewLogService(repo, cache, logger)
	purgeSvc := service.NewPurgeService(repo, cache, logger)
	health := NewHealthHandler(nil)

	h := NewAPIHandler(logSvc, purgeSvc, health, logger)

	r := chi.NewRouter()
	r.Post("/api/v1/logs", h.CreateLog)
	r.Get("/api/v1/logs", h.ListLogs)
	r.Get("/api/v1/logs/{logId}", h.GetLog)
	r.Post("/api/v1/purge", h.PurgeLogs)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	return &testEnv{router: r, repo: repo}
}

// doJSON выполняет запрос с JSON-телом и возвращает recorder.
func (e *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("ошибка сериализации тела: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// decodeBody десериализует тело ответа в map.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("ошибка разбора ответа %q: %v", rec.Body.String(), err)
	}
	return body
}

// errorCode извлекает машиночитаемый код из envelope ошибки.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rec)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("ответ не содержит envelope error: %s", rec.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func validCreateBody() map[string]any {
	return map[string]any{
		"service": "Auth",
		"user_id": "u1",
		"action":  "login",
		"level":   "info",
		"details": "успешный вход",
	}
}

// --- POST /api/v1/logs ---

func TestCreateLog(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", validCreateBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, ожидался 201; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["id"] == "" || body["id"] == nil {
		t.Error("в ответе отсутствует id")
	}
	if body["level"] != "INFO" {
		t.Errorf("level = %v, ожидался нормализованный INFO", body["level"])
	}
	if body["timestamp"] == "" || body["timestamp"] == nil {
		t.Error("в ответе отсутствует timestamp")
	}
	// Timestamp — RFC3339
	if ts, ok := body["timestamp"].(string); ok {
		if _, err := time.Parse(time.RFC3339, ts); err != nil {
			t.Errorf("timestamp %q не в формате RFC3339: %v", ts, err)
		}
	}
}

func TestCreateLog_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", map[string]any{"user_id": "u1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, ожидался VALIDATION_ERROR", code)
	}

	// Ничего не сохранено
	total, _ := env.repo.CountAll(context.Background())
	if total != 0 {
		t.Errorf("CountAll = %d, ожидался 0", total)
	}
}

func TestCreateLog_InvalidLevel(t *testing.T) {
	env := newTestEnv(t)

	body := validCreateBody()
	body["level"] = "VERBOSE"
	rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

func TestCreateLog_BadJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/logs", bytes.NewReader([]byte("{не json")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

// --- GET /api/v1/logs ---

func TestListLogs(t *testing.T) {
	env := newTestEnv(t)

	seed := func(service, userID, action, level string) {
		t.Helper()
		body := map[string]any{"service": service, "user_id": userID, "action": action, "level": level}
		if rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d", rec.Code)
		}
	}
	seed("Auth", "u1", "login", "INFO")
	seed("Training", "u2", "create_session", "INFO")
	seed("Procedures", "admin", "update_procedure", "WARNING")

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?service=Auth", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["filtered"] != float64(1) {
		t.Errorf("filtered = %v, ожидался 1", body["filtered"])
	}
	if body["total"] != float64(3) {
		t.Errorf("total = %v, ожидался 3", body["total"])
	}
	if body["chronological_order"] != true {
		t.Error("chronological_order != true")
	}
	logs, ok := body["logs"].([]any)
	if !ok || len(logs) != 1 {
		t.Fatalf("logs = %v, ожидалась одна запись", body["logs"])
	}
}

func TestListLogs_Empty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["total"] != float64(0) || body["filtered"] != float64(0) {
		t.Errorf("total/filtered = %v/%v, ожидалось 0/0", body["total"], body["filtered"])
	}
	if body["limit"] != float64(100) {
		t.Errorf("limit = %v, ожидался 100 (значение по умолчанию)", body["limit"])
	}
}

func TestListLogs_LimitCeiling(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?limit=5000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["limit"] != float64(1000) {
		t.Errorf("limit = %v, ожидался потолок 1000", body["limit"])
	}
}

func TestListLogs_LimitZero(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 3; i++ {
		if rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", validCreateBody()); rec.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d", rec.Code)
		}
	}

	// Явный limit=0 — пустая страница, счётчики при этом полные
	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?limit=0", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200; body: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["limit"] != float64(0) {
		t.Errorf("limit = %v, ожидался 0 (не значение по умолчанию)", body["limit"])
	}
	if body["total"] != float64(3) || body["filtered"] != float64(3) {
		t.Errorf("total/filtered = %v/%v, ожидалось 3/3", body["total"], body["filtered"])
	}
	if logs, ok := body["logs"].([]any); ok && len(logs) != 0 {
		t.Errorf("logs содержит %d записей, ожидалась пустая страница", len(logs))
	}
}

func TestListLogs_NegativeLimit(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", validCreateBody()); rec.Code != http.StatusCreated {
		t.Fatalf("seed: status = %d", rec.Code)
	}

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?limit=-5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["limit"] != float64(0) {
		t.Errorf("limit = %v, ожидался 0 (нижняя граница)", body["limit"])
	}
}

func TestListLogs_InvalidDate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?start_date=2026-13-45", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "VALIDATION_ERROR" {
		t.Errorf("code = %q, ожидался VALIDATION_ERROR", code)
	}
}

func TestListLogs_InvalidLimit(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs?limit=abc", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

// --- GET /api/v1/logs/{logId} ---

func TestGetLog(t *testing.T) {
	env := newTestEnv(t)

	created := env.doJSON(t, http.MethodPost, "/api/v1/logs", validCreateBody())
	if created.Code != http.StatusCreated {
		t.Fatalf("seed: status = %d", created.Code)
	}
	id, _ := decodeBody(t, created)["id"].(string)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["id"] != id {
		t.Errorf("id = %v, ожидался %q", body["id"], id)
	}
}

func TestGetLog_NotFound(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/v1/logs/aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, ожидался 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("code = %q, ожидался NOT_FOUND", code)
	}
}

// --- POST /api/v1/purge ---

func TestPurgeLogs_Accepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", validCreateBody()); rec.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d", rec.Code)
		}
	}

	rec := env.doJSON(t, http.MethodPost, "/api/v1/purge",
		map[string]any{"criteria": map[string]any{"delete_all": true}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, ожидался 202; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "accepted" {
		t.Errorf("status = %v, ожидался accepted", body["status"])
	}

	// Удаление асинхронное — ждём завершения с дедлайном
	deadline := time.Now().Add(2 * time.Second)
	for {
		total, _ := env.repo.CountAll(ctx)
		if total == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("записи не удалены за отведённое время, осталось %d", total)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPurgeLogs_ByService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	seed := func(service string) {
		t.Helper()
		body := validCreateBody()
		body["service"] = service
		if rec := env.doJSON(t, http.MethodPost, "/api/v1/logs", body); rec.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d", rec.Code)
		}
	}
	seed("Auth")
	seed("Training")

	rec := env.doJSON(t, http.MethodPost, "/api/v1/purge",
		map[string]any{"criteria": map[string]any{"service": "Training"}})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, ожидался 202", rec.Code)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		total, _ := env.repo.CountAll(ctx)
		if total == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("ожидалась 1 оставшаяся запись, осталось %d", total)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPurgeLogs_InvalidCriteria(t *testing.T) {
	env := newTestEnv(t)

	// Пустые критерии — ни одного режима
	rec := env.doJSON(t, http.MethodPost, "/api/v1/purge",
		map[string]any{"criteria": map[string]any{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_CRITERIA" {
		t.Errorf("code = %q, ожидался INVALID_CRITERIA", code)
	}
}

func TestPurgeLogs_MissingCriteriaKey(t *testing.T) {
	env := newTestEnv(t)

	// Режимы без обёртки criteria не распознаются
	rec := env.doJSON(t, http.MethodPost, "/api/v1/purge", map[string]any{"delete_all": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400 без ключа criteria", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_CRITERIA" {
		t.Errorf("code = %q, ожидался INVALID_CRITERIA", code)
	}
}

func TestPurgeLogs_EmptyServiceString(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/v1/purge",
		map[string]any{"criteria": map[string]any{"service": ""}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400 для пустого service", rec.Code)
	}
}

func TestPurgeLogs_BadJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/purge", bytes.NewReader([]byte("null{")))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

// --- Health ---

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/health/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, ожидался ok", body["status"])
	}
	if body["service"] != "auditlog-module" {
		t.Errorf("service = %v, ожидался auditlog-module", body["service"])
	}
}

func TestHealthReady_MemoryStore(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/health/ready", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("status = %v, ожидался ok", body["status"])
	}
}

// failingChecker — всегда возвращает fail.
type failingChecker struct{}

func (failingChecker) CheckReady() (string, string) {
	return "fail", "хранилище недоступно"
}

func TestHealthReady_Fail(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	health := NewHealthHandler(failingChecker{})
	h := NewAPIHandler(nil, nil, health, logger)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.HealthReady(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, ожидался 503", rec.Code)
	}
}
