package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultOperationsMaxArchiveEntryBytes = int64(1) << 30 // 单个条目压缩上限 1GB
	DefaultOperationsResultTTLMinutes     = 30             // 完成任务保留时间（分钟）
	DefaultOperationsArchiveTTLMinutes    = 60             // 临时压缩包保留时间（分钟）
	DefaultOperationsArchiveName          = "archive.zip"  // 固定压缩包文件名
	DefaultOperationsTempPrefix           = "temp"         // 每用户临时目录前缀
	DefaultOperationsMaxPathLength        = 200            // 压缩包内路径长度上限
	DefaultOperationsLongPathSegment      = "LONG_FOLDER_NAME"
)

// OperationsConfig 后台批量操作引擎配置.
type OperationsConfig struct {
	// MaxArchiveEntryBytes 单个文件参与打包的大小上限，超出的条目单独报错并跳过
	MaxArchiveEntryBytes int64 `mapstructure:"max_archive_entry_bytes" rule:"min=1"`
	// ResultTTLMinutes 终态任务在内存中的保留时间，供客户端取结果
	ResultTTLMinutes int `mapstructure:"result_ttl_minutes" rule:"min=1"`
	// ArchiveTTLMinutes 临时压缩包在对象存储中的保留时间
	ArchiveTTLMinutes int `mapstructure:"archive_ttl_minutes" rule:"min=1"`
	// ArchiveName 压缩包固定文件名
	ArchiveName string `mapstructure:"archive_name" rule:"required"`
	// TempPrefix 每用户临时目录前缀（{prefix}/{user}/archive.zip）
	TempPrefix string `mapstructure:"temp_prefix" rule:"required"`
	// MaxPathLength 压缩包内路径长度上限，超过后折叠目录部分
	MaxPathLength int `mapstructure:"max_path_length" rule:"min=16"`
	// LongPathSegment 折叠后的固定目录名
	LongPathSegment string `mapstructure:"long_path_segment" rule:"required"`
}

// ResultTTL 返回终态任务保留时长.
func (c *OperationsConfig) ResultTTL() time.Duration {
	return time.Duration(c.ResultTTLMinutes) * time.Minute
}

// ArchiveTTL 返回临时压缩包保留时长.
func (c *OperationsConfig) ArchiveTTL() time.Duration {
	return time.Duration(c.ArchiveTTLMinutes) * time.Minute
}

// setDefaults 设置操作引擎配置的默认值.
func (c *OperationsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("operations.max_archive_entry_bytes", DefaultOperationsMaxArchiveEntryBytes)
	v.SetDefault("operations.result_ttl_minutes", DefaultOperationsResultTTLMinutes)
	v.SetDefault("operations.archive_ttl_minutes", DefaultOperationsArchiveTTLMinutes)
	v.SetDefault("operations.archive_name", DefaultOperationsArchiveName)
	v.SetDefault("operations.temp_prefix", DefaultOperationsTempPrefix)
	v.SetDefault("operations.max_path_length", DefaultOperationsMaxPathLength)
	v.SetDefault("operations.long_path_segment", DefaultOperationsLongPathSegment)
}
