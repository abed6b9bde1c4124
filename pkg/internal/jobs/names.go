package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobOperationsSweep  = "operations.sweep"
	JobArchiveTempClean = "archive.temp_clean"
)

// Cron 表达式常量（可选，但推荐一并集中管理）.
const (
	CronOperationsSweep  = "*/10 * * * *"
	CronArchiveTempClean = "15 * * * *"
)
