package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MetricsConfig 指标配置. /metrics 暴露在独立的 debug 引擎上，
// 批量操作与标记引擎的计数器见 pkg/metrics.
type MetricsConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"service_name"`
	ServiceVersion  string            `mapstructure:"service_version"`
	ExporterType    string            `mapstructure:"exporter_type"` // prometheus
	Endpoint        string            `mapstructure:"endpoint"`      // debug 引擎监听地址
	CollectInterval time.Duration     `mapstructure:"collect_interval"`
	RuntimeMetrics  bool              `mapstructure:"runtime_metrics"` // Go runtime 与进程指标
	Pprof           bool              `mapstructure:"pprof"`           // 同一引擎上暴露 /debug/pprof
	CustomMetrics   []string          `mapstructure:"custom_metrics"`
	Labels          map[string]string `mapstructure:"labels"`
}

// setDefaults 设置指标配置的默认值.
func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.service_name", "docvault")
	v.SetDefault("metrics.service_version", AppVersion)
	v.SetDefault("metrics.exporter_type", "prometheus")
	v.SetDefault("metrics.endpoint", ":9090")
	v.SetDefault("metrics.collect_interval", "15s")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.custom_metrics", []string{})
	v.SetDefault("metrics.labels", map[string]string{
		"service": "docvault",
	})
}
