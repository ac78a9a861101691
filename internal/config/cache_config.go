package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	cacheSizeKey      = "cache_size"
	cacheStaleTimeKey = "cache_stale_time"

	defaultStaleTime = 5 * time.Minute
)

type CacheConfig interface {
	GetCacheSize() int
	GetCacheStaleTime() time.Duration
}

type Cache struct {
	v *viper.Viper
}

var _ CacheConfig = Cache{}

func (c Cache) GetCacheSize() int {
	size := c.v.GetInt(cacheSizeKey)
	if size < 1 {
		return 1
	}
	return size
}

func (c Cache) GetCacheStaleTime() time.Duration {
	return c.v.GetDuration(cacheStaleTimeKey)
}
