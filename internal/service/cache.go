// Пакет service — бизнес-логика Audit Log Module.
// CacheService — LRU-кэш записей аудита с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/auditlog-module/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "al_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей аудита.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "al_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей аудита.",
	})
)

// CacheService — LRU-кэш записей аудита с автоматическим TTL.
// Каждый экземпляр модуля имеет собственный in-memory кэш.
type CacheService struct {
	cache *expirable.LRU[string, *model.LogRecord]
}

// NewCacheService создаёт LRU-кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество записей в кэше.
// ttl — время жизни записи после добавления.
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, *model.LogRecord](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает запись аудита из кэша по ID.
// Возвращает (запись, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(id string) (*model.LogRecord, bool) {
	val, ok := c.cache.Get(id)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись в кэше.
func (c *CacheService) Set(id string, record *model.LogRecord) {
	c.cache.Add(id, record)
}

// Delete удаляет запись из кэша.
func (c *CacheService) Delete(id string) {
	c.cache.Remove(id)
}

// Flush полностью очищает кэш. Вызывается после purge: удалённые
// записи не должны оставаться читаемыми через кэш.
func (c *CacheService) Flush() {
	c.cache.Purge()
}
