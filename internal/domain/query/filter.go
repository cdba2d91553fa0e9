// Пакет query — декларативные условия отбора записей аудита.
//
// Filter — единый контракт предиката для обоих хранилищ: in-memory
// реализация вычисляет его через Matches, PostgreSQL-реализация
// транслирует те же поля в WHERE-условие. Семантика обязана совпадать:
// логическое AND по всем заданным ограничениям, пустой фильтр
// пропускает всё.
package query

import (
	"strings"
	"time"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
)

// Filter — набор опциональных ограничений на запись аудита.
// nil-поле означает отсутствие ограничения.
type Filter struct {
	// Service — точное совпадение имени сервиса (регистрозависимое)
	Service *string
	// Level — совпадение уровня; сравнение после приведения к верхнему регистру
	Level *string
	// UserID — точное совпадение идентификатора пользователя
	UserID *string
	// Action — точное совпадение действия
	Action *string
	// Since — timestamp >= Since (включительно)
	Since *time.Time
	// Before — timestamp < Before (строго)
	Before *time.Time
	// DetailsLike — регистронезависимое вхождение подстроки в details
	DetailsLike *string
}

// IsEmpty возвращает true, если фильтр не содержит ни одного ограничения.
func (f Filter) IsEmpty() bool {
	return f.Service == nil && f.Level == nil && f.UserID == nil &&
		f.Action == nil && f.Since == nil && f.Before == nil &&
		f.DetailsLike == nil
}

// Matches возвращает true, если запись удовлетворяет всем заданным
// ограничениям. Ограничение на пустое поле записи не совпадает
// (fail closed): фильтр по user_id не пропустит запись без user_id.
// Чистая функция без побочных эффектов.
func (f Filter) Matches(rec *model.LogRecord) bool {
	if f.Service != nil && rec.Service != *f.Service {
		return false
	}
	if f.Level != nil && rec.Level != strings.ToUpper(*f.Level) {
		return false
	}
	if f.UserID != nil && (rec.UserID == "" || rec.UserID != *f.UserID) {
		return false
	}
	if f.Action != nil && rec.Action != *f.Action {
		return false
	}
	if f.Since != nil && rec.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Before != nil && !rec.Timestamp.Before(*f.Before) {
		return false
	}
	if f.DetailsLike != nil {
		if rec.Details == "" {
			return false
		}
		if !strings.Contains(strings.ToLower(rec.Details), strings.ToLower(*f.DetailsLike)) {
			return false
		}
	}
	return true
}
