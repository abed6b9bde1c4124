package configs

import "github.com/spf13/viper"

// EventsConfig 控制事件发布的开关（全局与分领域）。
type EventsConfig struct {
	Enabled   bool                  `mapstructure:"enabled"` // 总开关
	Operation OperationEventsConfig `mapstructure:"operation"`
	Marker    MarkerEventsConfig    `mapstructure:"marker"`
}

// OperationEventsConfig 批量操作领域的事件开关。
type OperationEventsConfig struct {
	Submitted bool `mapstructure:"submitted"`
	Finished  bool `mapstructure:"finished"`
	Canceled  bool `mapstructure:"canceled"`
	// ArchiveReady 压缩产物写入临时桶后的通知事件
	ArchiveReady bool `mapstructure:"archive_ready"`
	// ArchiveExpired 过期压缩产物被清理任务删除后的通知事件
	ArchiveExpired bool `mapstructure:"archive_expired"`
}

// MarkerEventsConfig 未读标记领域的事件开关。
type MarkerEventsConfig struct {
	Marked  bool `mapstructure:"marked"`
	Cleared bool `mapstructure:"cleared"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 操作生命周期事件：默认开启提交/完成，取消并入完成事件
	v.SetDefault("events.operation.submitted", true)
	v.SetDefault("events.operation.finished", true)
	v.SetDefault("events.operation.canceled", false)
	v.SetDefault("events.operation.archive_ready", true)
	v.SetDefault("events.operation.archive_expired", true)

	// 标记事件量可能很大，默认关闭
	v.SetDefault("events.marker.marked", false)
	v.SetDefault("events.marker.cleared", false)
}
