package model

import "time"

// OperationKind 批量操作类型.
type OperationKind string

const (
	OperationDownload OperationKind = "download"
	OperationMove     OperationKind = "move"
	OperationCopy     OperationKind = "copy"
	OperationDelete   OperationKind = "delete"
	OperationMarkRead OperationKind = "mark_read"
)

// OperationRow 任务快照持久化行. 运行中每次状态变化都会写入内存任务表，
// 终态快照额外落库，便于进程重启后客户端仍能查询结果.
type OperationRow struct {
	ID    string        `gorm:"primaryKey;size:32" json:"id"`
	Owner string        `gorm:"size:255;index"     json:"owner"`
	Kind  OperationKind `gorm:"size:16;index"      json:"kind"`
	// Sources 源条目 id 列表（JSON 数组）
	Sources   string `gorm:"type:text" json:"sources"`
	Progress  int    `json:"progress"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	// Result 结果引用（压缩包取回地址等），不放字节本体
	Result   string `gorm:"size:1024" json:"result,omitempty"`
	Error    string `gorm:"type:text" json:"error,omitempty"`
	Finished bool   `gorm:"index"     json:"finished"`
	// Hold 客户端尚未取走结果时为 true，保留到取走或过期
	Hold bool `json:"hold"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
