// planner.go — построение плана выборки из пользовательского Spec.
// Планировщик собирает Filter из непустых скалярных полей, парсит границы
// дат и нормализует пагинацию. Сортировка фиксирована: по timestamp
// по возрастанию (хронологический порядок) — это политика, не настройка.
package query

import (
	"fmt"
	"time"
)

// Пагинация по умолчанию и жёсткий потолок.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// dateLayout — формат границ дат в Spec (календарная дата).
const dateLayout = "2006-01-02"

// Направления сортировки.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Spec — пользовательский набор фильтров запроса, как он приходит
// с транспортного слоя. Пустая строка = фильтр не задан.
type Spec struct {
	// Service — фильтр по имени сервиса
	Service string
	// Level — фильтр по уровню
	Level string
	// UserID — фильтр по пользователю
	UserID string
	// Action — фильтр по действию
	Action string
	// StartDate — нижняя граница даты, формат YYYY-MM-DD, включительно
	StartDate string
	// EndDate — верхняя граница даты, формат YYYY-MM-DD, включительно
	EndDate string
	// Limit — размер страницы; nil = не задан (значение по умолчанию).
	// Явный 0 валиден и даёт пустую страницу при полном filtered.
	Limit *int
	// Offset — смещение страницы
	Offset int
}

// Plan — результат планирования: предикат, пагинация и порядок.
type Plan struct {
	// Filter — предикат, эквивалентный всем заданным ограничениям Spec
	Filter Filter
	// Limit — нормализованный размер страницы, [0, MaxLimit]
	Limit int
	// Offset — нормализованное смещение, >= 0
	Offset int
	// Order — направление сортировки по timestamp (всегда OrderAsc)
	Order string
}

// BuildPlan строит план выборки из Spec.
// Непустые скалярные поля становятся ограничениями точного совпадения.
// Некорректная граница даты проваливает планирование целиком с ошибкой,
// называющей именно эту границу — частичный план не возвращается.
func BuildPlan(spec Spec) (Plan, error) {
	plan := Plan{
		Limit:  clampLimit(spec.Limit),
		Offset: clampOffset(spec.Offset),
		Order:  OrderAsc,
	}

	if spec.Service != "" {
		s := spec.Service
		plan.Filter.Service = &s
	}
	if spec.Level != "" {
		l := spec.Level
		plan.Filter.Level = &l
	}
	if spec.UserID != "" {
		u := spec.UserID
		plan.Filter.UserID = &u
	}
	if spec.Action != "" {
		a := spec.Action
		plan.Filter.Action = &a
	}

	if spec.StartDate != "" {
		day, err := time.ParseInLocation(dateLayout, spec.StartDate, time.UTC)
		if err != nil {
			return Plan{}, fmt.Errorf("start_date: некорректная дата %q (ожидается формат YYYY-MM-DD)", spec.StartDate)
		}
		// Начало дня, включительно
		plan.Filter.Since = &day
	}
	if spec.EndDate != "" {
		day, err := time.ParseInLocation(dateLayout, spec.EndDate, time.UTC)
		if err != nil {
			return Plan{}, fmt.Errorf("end_date: некорректная дата %q (ожидается формат YYYY-MM-DD)", spec.EndDate)
		}
		// Включительно весь день end_date: timestamp < end_date + 1 день
		before := day.AddDate(0, 0, 1)
		plan.Filter.Before = &before
	}

	return plan, nil
}

// clampLimit нормализует размер страницы в [0, MaxLimit]:
// не задан → DefaultLimit, отрицательные → 0, больше MaxLimit → MaxLimit.
// Явный 0 сохраняется — пустая страница с полными счётчиками валидна.
func clampLimit(limit *int) int {
	switch {
	case limit == nil:
		return DefaultLimit
	case *limit < 0:
		return 0
	case *limit > MaxLimit:
		return MaxLimit
	default:
		return *limit
	}
}

// clampOffset нормализует смещение: отрицательные → 0.
func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
