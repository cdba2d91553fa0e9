// memory.go — потокобезопасное in-memory хранилище записей аудита.
//
// Полноценная реализация LogRepository без БД: используется в тестах
// и в dev-режиме (AL_STORE=memory). Семантика выборки и purge обязана
// совпадать с PostgreSQL-реализацией — предикаты вычисляются через
// query.Filter.Matches.
//
// Не персистентное: при рестарте содержимое теряется.
package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
)

// memEntry — запись с порядковым номером вставки для стабильного
// tie-break при сортировке по одинаковым timestamp.
type memEntry struct {
	rec *model.LogRecord
	seq uint64
}

// MemoryRepository — in-memory реализация LogRepository.
// Использует sync.RWMutex: читатели конкурентны, мутации эксклюзивны,
// каждая операция видит согласованный снимок коллекции.
// Создаётся явно и передаётся по ссылке — никакого process-wide синглтона.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []memEntry
	nextSeq uint64

	// now — источник времени; подменяется в тестах для backdating.
	now func() time.Time
}

// NewMemoryRepository создаёт пустое in-memory хранилище.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now: time.Now,
	}
}

// SetClock подменяет источник времени (для тестов).
func (m *MemoryRepository) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Insert валидирует кандидата, назначает UUID и UTC-timestamp и сохраняет копию.
// При ошибке валидации коллекция не изменяется.
func (m *MemoryRepository) Insert(_ context.Context, candidate *model.LogRecord) (*model.LogRecord, error) {
	rec := *candidate
	if err := rec.Prepare(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = uuid.NewString()
	rec.Timestamp = m.now().UTC()

	m.entries = append(m.entries, memEntry{rec: &rec, seq: m.nextSeq})
	m.nextSeq++

	// Возвращаем копию — хранимая запись неизменяема извне
	out := rec
	return &out, nil
}

// GetByID возвращает копию записи по UUID или ErrNotFound.
func (m *MemoryRepository) GetByID(_ context.Context, id string) (*model.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.entries {
		if e.rec.ID == id {
			out := *e.rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Find отбирает записи предикатом, сортирует по timestamp и применяет
// пагинацию. Возвращает страницу и полное количество совпадений.
// Весь расчёт под RLock — выборка видит согласованный снимок.
func (m *MemoryRepository) Find(_ context.Context, q Query) ([]*model.LogRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []memEntry
	for _, e := range m.entries {
		if q.Filter.Matches(e.rec) {
			matched = append(matched, e)
		}
	}
	total := len(matched)

	desc := q.Order == query.OrderDesc
	sort.Slice(matched, func(i, j int) bool {
		ti, tj := matched[i].rec.Timestamp, matched[j].rec.Timestamp
		if !ti.Equal(tj) {
			if desc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		}
		// Tie-break: порядок вставки — пагинация детерминирована
		if desc {
			return matched[i].seq > matched[j].seq
		}
		return matched[i].seq < matched[j].seq
	})

	// Окно [offset, offset+limit); limit 0 даёт пустую страницу
	start := q.Offset
	if start > total {
		start = total
	}
	end := total
	if q.Limit >= 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	page := make([]*model.LogRecord, 0, end-start)
	for _, e := range matched[start:end] {
		out := *e.rec
		page = append(page, &out)
	}
	return page, total, nil
}

// CountAll возвращает общее количество записей.
func (m *MemoryRepository) CountAll(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// DeleteWhere удаляет все записи, удовлетворяющие предикату.
// Выполняется целиком под эксклюзивной блокировкой: конкурентная
// выборка видит коллекцию либо до, либо после удаления.
func (m *MemoryRepository) DeleteWhere(_ context.Context, f query.Filter) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.entries[:0]
	deleted := 0
	for _, e := range m.entries {
		if f.Matches(e.rec) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	// Обнуляем хвост, чтобы не держать ссылки на удалённые записи
	for i := len(kept); i < len(m.entries); i++ {
		m.entries[i] = memEntry{}
	}
	m.entries = kept
	return deleted, nil
}
