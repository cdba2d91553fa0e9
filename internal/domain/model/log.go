// Пакет model — доменные модели Audit Log Module.
// LogRecord — одна запись аудита, маппинг таблицы audit_logs.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Уровни важности записи аудита.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// validLevels — закрытый набор допустимых уровней.
var validLevels = map[string]bool{
	LevelInfo:    true,
	LevelWarning: true,
	LevelError:   true,
}

// LogRecord — запись аудита. После создания хранилищем неизменяема:
// ID и Timestamp назначаются при вставке, дальнейших мутаций нет,
// удаление возможно только через purge.
type LogRecord struct {
	// ID — UUID записи (назначается хранилищем при вставке)
	ID string
	// Timestamp — момент вставки, всегда UTC (назначается хранилищем).
	// Хранится только как структурный time.Time; форматирование в строку —
	// забота API-слоя.
	Timestamp time.Time
	// Service — имя микросервиса-источника (обязательное)
	Service string
	// UserID — идентификатор действующего пользователя (опционально)
	UserID string
	// Action — выполненное действие: login, create, update и т.п. (обязательное)
	Action string
	// Level — уровень: INFO, WARNING, ERROR (обязательное, нормализуется в верхний регистр)
	Level string
	// Details — произвольное текстовое описание события (опционально)
	Details string
}

// ValidationError — ошибка валидации кандидата на вставку.
// Missing перечисляет ВСЕ отсутствующие обязательные поля,
// Reason — дополнительная причина (например, недопустимый level).
type ValidationError struct {
	Missing []string
	Reason  string
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "отсутствуют обязательные поля: " + strings.Join(e.Missing, ", ")
	}
	return e.Reason
}

// Prepare нормализует и валидирует кандидата перед вставкой.
// Level приводится к верхнему регистру. Возвращает *ValidationError,
// если обязательные поля (service, action, level) пусты или level
// не входит в допустимый набор. ID и Timestamp здесь не трогаются —
// их назначает хранилище.
func (r *LogRecord) Prepare() error {
	r.Level = strings.ToUpper(strings.TrimSpace(r.Level))
	r.Service = strings.TrimSpace(r.Service)
	r.Action = strings.TrimSpace(r.Action)

	var missing []string
	if r.Service == "" {
		missing = append(missing, "service")
	}
	if r.Action == "" {
		missing = append(missing, "action")
	}
	if r.Level == "" {
		missing = append(missing, "level")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}

	if !validLevels[r.Level] {
		return &ValidationError{
			Reason: fmt.Sprintf("недопустимый level %q, допустимые: %s, %s, %s",
				r.Level, LevelInfo, LevelWarning, LevelError),
		}
	}

	return nil
}
