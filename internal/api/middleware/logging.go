// logging.go — slog-журналирование HTTP-запросов Audit Log Module.
// Каждый запрос даёт одну итоговую запись после обработки: метод, путь,
// строка запроса (фильтры выборки), статус, длительность и размер ответа.
// Уровень растёт вместе со статусом: 4xx — warn, 5xx — error.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder — обёртка ResponseWriter, запоминающая статус-код
// и количество записанных байт.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += int64(n)
	return n, err
}

// Unwrap открывает оригинальный ResponseWriter для http.ResponseController.
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// RequestLogger возвращает middleware журналирования запросов.
// Строка запроса логируется отдельным атрибутом: для GET /api/v1/logs
// именно она несёт фильтры выборки и нужна при разборе инцидентов.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", rec.bytes),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if q := r.URL.RawQuery; q != "" {
				attrs = append(attrs, slog.String("query", q))
			}

			var level slog.Level
			switch {
			case rec.status >= http.StatusInternalServerError:
				level = slog.LevelError
			case rec.status >= http.StatusBadRequest:
				level = slog.LevelWarn
			default:
				level = slog.LevelInfo
			}

			log.LogAttrs(r.Context(), level, "HTTP запрос обработан", attrs...)
		})
	}
}
