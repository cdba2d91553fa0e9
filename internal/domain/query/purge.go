// purge.go — преобразование критериев purge в предикат удаления.
// Три режима с фиксированным приоритетом: delete_all перекрывает
// older_than_days, который перекрывает service. Критерии без единого
// распознанного ключа отклоняются — предикат не строится, удаление
// не выполняется.
package query

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCriteria — критерии purge не содержат ни одного
// распознанного ключа.
var ErrInvalidCriteria = errors.New("некорректные критерии purge: требуется один из ключей delete_all, older_than_days, service")

// PurgeCriteria — критерии purge, как они приходят от оператора
// или таймера ретеншена. Предпочтительно задавать ровно один ключ;
// при нескольких действует приоритет Resolve.
type PurgeCriteria struct {
	// DeleteAll — удалить все записи
	DeleteAll bool
	// OlderThanDays — удалить записи старше N дней
	OlderThanDays *int
	// Service — удалить записи указанного сервиса (точное совпадение)
	Service *string
}

// Resolve строит предикат удаления по критериям.
// now передаётся явно и вычисляется ровно один раз на всю операцию —
// единая граница отсечения для всего purge, не пересчитываемая на запись.
// Возвращает предикат и человекочитаемое описание для аудита.
func (c PurgeCriteria) Resolve(now time.Time) (Filter, string, error) {
	switch {
	case c.DeleteAll:
		// Пустой фильтр пропускает всё
		return Filter{}, "все записи", nil

	case c.OlderThanDays != nil:
		// timestamp строго раньше (now - N дней)
		cutoff := now.UTC().AddDate(0, 0, -*c.OlderThanDays)
		return Filter{Before: &cutoff},
			fmt.Sprintf("записи старше %d дн.", *c.OlderThanDays), nil

	case c.Service != nil && *c.Service != "":
		svc := *c.Service
		return Filter{Service: &svc},
			fmt.Sprintf("записи сервиса %q", svc), nil

	default:
		return Filter{}, "", ErrInvalidCriteria
	}
}
