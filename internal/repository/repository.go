// Пакет repository — слой доступа к записям аудита.
// Контракт LogRepository реализуют два хранилища: PostgreSQL через pgx
// (боевое) и in-memory (тестовый двойник и dev-режим). Оба обязаны
// одинаково интерпретировать query.Filter — вся семантика выборки и
// purge задана предикатом, а не конкретным хранилищем.
// Все SQL-запросы — чистый SQL через pgx, без ORM.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
)

// Query — параметры выборки: предикат, порядок и пагинация.
// Ключ сортировки фиксирован — timestamp; направление задаётся Order
// (whitelist: query.OrderAsc / query.OrderDesc, прочее → asc).
type Query struct {
	// Filter — предикат отбора записей
	Filter query.Filter
	// Order — направление сортировки по timestamp
	Order string
	// Limit — размер страницы; 0 — валидная пустая страница
	// (счётчик совпадений при этом полный), отрицательное значение —
	// без ограничения
	Limit int
	// Offset — смещение страницы
	Offset int
}

// LogRepository — интерфейс хранилища записей аудита.
type LogRepository interface {
	// Insert валидирует кандидата, назначает ID и UTC-timestamp,
	// сохраняет запись и возвращает её. При ошибке валидации запись
	// не сохраняется (всё или ничего).
	Insert(ctx context.Context, candidate *model.LogRecord) (*model.LogRecord, error)
	// GetByID возвращает запись по UUID или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.LogRecord, error)
	// Find возвращает страницу записей, удовлетворяющих предикату,
	// и ПОЛНОЕ количество совпадений (независимо от пагинации).
	// Сортировка по timestamp стабильна: при равных значениях порядок
	// вставки сохраняется, поэтому пагинация детерминирована.
	Find(ctx context.Context, q Query) ([]*model.LogRecord, int, error)
	// CountAll возвращает общее количество записей без фильтрации.
	CountAll(ctx context.Context) (int, error)
	// DeleteWhere удаляет все записи, удовлетворяющие предикату,
	// и возвращает количество удалённых.
	DeleteWhere(ctx context.Context, f query.Filter) (int, error)
}

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx, что позволяет
// использовать репозитории как внутри, так и вне транзакций.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
