package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
	"github.com/bigkaa/auditlog-module/internal/domain/query"
)

// logColumns — список столбцов таблицы audit_logs для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const logColumns = `id, ts, service, user_id, action, level, details`

// logRepo — реализация LogRepository через pgx.
type logRepo struct {
	db DBTX
}

// NewLogRepository создаёт PostgreSQL-репозиторий записей аудита.
func NewLogRepository(db DBTX) LogRepository {
	return &logRepo{db: db}
}

// Insert валидирует кандидата, назначает UUID и UTC-timestamp и сохраняет запись.
// Валидация выполняется до обращения к БД — невалидный кандидат не вставляется.
func (r *logRepo) Insert(ctx context.Context, candidate *model.LogRecord) (*model.LogRecord, error) {
	rec := *candidate
	if err := rec.Prepare(); err != nil {
		return nil, err
	}

	rec.ID = uuid.NewString()
	rec.Timestamp = time.Now().UTC()

	sql := `
		INSERT INTO audit_logs (id, ts, service, user_id, action, level, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, sql,
		rec.ID, rec.Timestamp, rec.Service, rec.UserID, rec.Action, rec.Level, rec.Details,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка вставки записи аудита: %w", err)
	}
	return &rec, nil
}

// GetByID возвращает запись по UUID или ErrNotFound.
func (r *logRepo) GetByID(ctx context.Context, id string) (*model.LogRecord, error) {
	sql := fmt.Sprintf(`SELECT %s FROM audit_logs WHERE id = $1`, logColumns)

	rec := &model.LogRecord{}
	err := r.db.QueryRow(ctx, sql, id).Scan(
		&rec.ID, &rec.Timestamp, &rec.Service, &rec.UserID, &rec.Action, &rec.Level, &rec.Details,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	return rec, nil
}

// Find выполняет выборку с предикатом, сортировкой и пагинацией.
// Возвращает (страница, полное количество совпадений, ошибка).
// Количество считается отдельным COUNT(*) с теми же фильтрами,
// поэтому отражает весь match set даже при обрезанной странице.
func (r *logRepo) Find(ctx context.Context, q Query) ([]*model.LogRecord, int, error) {
	where, args := buildLogWhere(q.Filter, 1)
	argNum := len(args) + 1

	orderBy := buildOrderBy(q.Order)

	dataQuery := fmt.Sprintf(
		`SELECT %s FROM audit_logs %s %s LIMIT $%d OFFSET $%d`,
		logColumns, where, orderBy, argNum, argNum+1,
	)
	args = append(args, q.Limit, q.Offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выборки записей аудита: %w", err)
	}
	defer rows.Close()

	var result []*model.LogRecord
	for rows.Next() {
		rec := &model.LogRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Timestamp, &rec.Service, &rec.UserID, &rec.Action, &rec.Level, &rec.Details,
		); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	countWhere, countArgs := buildLogWhere(q.Filter, 1)
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM audit_logs %s`, countWhere)

	var matched int
	if err := r.db.QueryRow(ctx, countQuery, countArgs...).Scan(&matched); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчёта совпадений: %w", err)
	}

	return result, matched, nil
}

// CountAll возвращает общее количество записей.
func (r *logRepo) CountAll(ctx context.Context) (int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`).Scan(&total); err != nil {
		return 0, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	return total, nil
}

// DeleteWhere удаляет все записи по предикату одним DELETE.
// Атомарность по отношению к конкурентным запросам обеспечивает
// сама СУБД: одна команда — один снимок.
func (r *logRepo) DeleteWhere(ctx context.Context, f query.Filter) (int, error) {
	where, args := buildLogWhere(f, 1)
	sql := fmt.Sprintf(`DELETE FROM audit_logs %s`, where)

	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления записей: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// buildLogWhere строит WHERE-условие и аргументы из предиката.
// Семантика обязана один в один совпадать с query.Filter.Matches —
// оба хранилища должны отбирать одинаковые множества записей.
// startArg — номер первого $-параметра (для корректной нумерации).
func buildLogWhere(f query.Filter, startArg int) (whereClause string, args []any) {
	var conditions []string
	argNum := startArg

	// Точное совпадение сервиса (регистрозависимое)
	if f.Service != nil {
		conditions = append(conditions, fmt.Sprintf("service = $%d", argNum))
		args = append(args, *f.Service)
		argNum++
	}

	// Уровень — сравнение после приведения к верхнему регистру.
	// В таблице level уже нормализован при вставке.
	if f.Level != nil {
		conditions = append(conditions, fmt.Sprintf("level = UPPER($%d)", argNum))
		args = append(args, *f.Level)
		argNum++
	}

	// user_id: пустое значение в записи означает отсутствие поля —
	// фильтр его не пропускает (fail closed), что даёт обычное равенство.
	if f.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", argNum))
		args = append(args, *f.UserID)
		argNum++
	}

	// Точное совпадение действия
	if f.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argNum))
		args = append(args, *f.Action)
		argNum++
	}

	// Нижняя граница времени (включительно)
	if f.Since != nil {
		conditions = append(conditions, fmt.Sprintf("ts >= $%d", argNum))
		args = append(args, *f.Since)
		argNum++
	}

	// Верхняя граница времени (строго)
	if f.Before != nil {
		conditions = append(conditions, fmt.Sprintf("ts < $%d", argNum))
		args = append(args, *f.Before)
		argNum++
	}

	// Регистронезависимое вхождение подстроки в details.
	// Спецсимволы LIKE экранируются: подстрока сравнивается буквально,
	// как в in-memory реализации. details = '' трактуется как отсутствие
	// поля — пустая строка не совпадёт с непустым шаблоном.
	if f.DetailsLike != nil {
		conditions = append(conditions, fmt.Sprintf("details ILIKE $%d", argNum))
		args = append(args, "%"+escapeLike(*f.DetailsLike)+"%")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}
	return where, args
}

// escapeLike экранирует спецсимволы шаблона LIKE/ILIKE (%, _, \),
// чтобы они не срабатывали как wildcards внутри искомой подстроки.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildOrderBy строит ORDER BY с безопасным whitelist направлений.
// Ключ сортировки фиксирован: ts, с tie-break по seq (порядок вставки) —
// это делает пагинацию детерминированной при равных timestamp.
func buildOrderBy(order string) string {
	direction := "ASC"
	if strings.EqualFold(order, query.OrderDesc) {
		direction = "DESC"
	}
	return fmt.Sprintf("ORDER BY ts %s, seq %s", direction, direction)
}
