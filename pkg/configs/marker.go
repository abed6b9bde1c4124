package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMarkerQueueSize       = 1024 // 单消费者队列容量
	DefaultMarkerCacheTTLMinutes = 10   // 根目录未读计数缓存时间（分钟）
)

// MarkerConfig 未读标记引擎配置.
type MarkerConfig struct {
	// QueueSize 变更队列容量. 队列满时入队阻塞（有界队列，显式背压）
	QueueSize int `mapstructure:"queue_size" rule:"min=1"`
	// CacheTTLMinutes 根目录计数缓存 TTL
	CacheTTLMinutes int `mapstructure:"cache_ttl_minutes" rule:"min=1"`
}

// CacheTTL 返回缓存 TTL 时长.
func (c *MarkerConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMinutes) * time.Minute
}

// setDefaults 设置标记引擎配置的默认值.
func (c *MarkerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("marker.queue_size", DefaultMarkerQueueSize)
	v.SetDefault("marker.cache_ttl_minutes", DefaultMarkerCacheTTLMinutes)
}
