// cache.go - LRU-кэш публичных профилей пользователей с TTL.
// Используется при проверке токена на каждом защищённом запросе.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/smartlt/criclabs-assignment/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_user_cache_hits_total",
		Help: "Общее количество попаданий в кэш пользователей.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_user_cache_misses_total",
		Help: "Общее количество промахов кэша пользователей.",
	})
)

// UserCache - кэш PublicUser по ID пользователя.
type UserCache struct {
	cache *expirable.LRU[string, *model.PublicUser]
}

// NewUserCache создаёт кэш с указанным максимальным размером и TTL.
func NewUserCache(maxSize int, ttl time.Duration) *UserCache {
	return &UserCache{cache: expirable.NewLRU[string, *model.PublicUser](maxSize, nil, ttl)}
}

// Get возвращает профиль из кэша. Обновляет метрики hit/miss.
func (c *UserCache) Get(userID string) (*model.PublicUser, bool) {
	val, ok := c.cache.Get(userID)
	if ok {
		userCacheHitsTotal.Inc()
		return val, true
	}
	userCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет профиль.
func (c *UserCache) Set(userID string, user *model.PublicUser) {
	c.cache.Add(userID, user)
}

// Delete удаляет профиль из кэша.
func (c *UserCache) Delete(userID string) {
	c.cache.Remove(userID)
}
