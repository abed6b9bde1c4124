package queue

import "time"

// EventHeader 定义所有事件的通用头部元数据.
// 建议在发布消息时填充 TraceID、OccurredAt、Producer 等，便于追踪链路与审计.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// TraceID 分布式追踪/关联 ID，可来自中间件或业务生成.
	TraceID string `json:"trace_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
// T 即不同主题对应的负载结构体.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// -------------------------- 批量操作领域 --------------------------

// OperationRef 标识一次后台批量操作.
type OperationRef struct {
	OperationID string `json:"operation_id"`
	Owner       string `json:"owner"`
	Kind        string `json:"kind"` // download/move/copy/delete/mark_read
}

// OperationSubmittedPayload 操作入队.
type OperationSubmittedPayload struct {
	OperationRef

	Folders int `json:"folders,omitempty"` // 请求中的文件夹数
	Files   int `json:"files,omitempty"`   // 请求中的文件数
}

// OperationFinishedPayload 操作终结（完成/失败/取消）.
type OperationFinishedPayload struct {
	OperationRef

	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Error     string `json:"error,omitempty"`
	Canceled  bool   `json:"canceled,omitempty"`
}

// OperationCanceledPayload 用户请求取消.
type OperationCanceledPayload struct {
	OperationRef
}

// -------------------------- 新标记领域 --------------------------

// MarkerPayload 单个条目的标记变更.
type MarkerPayload struct {
	Owner     string `json:"owner"`      // 标记所属用户；清除全部用户时为空
	EntryID   string `json:"entry_id"`   // 文件或文件夹 ID
	EntryType string `json:"entry_type"` // file/folder
	AllUsers  bool   `json:"all_users,omitempty"`
}

// -------------------------- 压缩产物领域 --------------------------

// ArchivePayload 压缩产物事件.
type ArchivePayload struct {
	Owner    string `json:"owner"`
	TempPath string `json:"temp_path"`
	Entries  int    `json:"entries,omitempty"` // 成功写入的条目数
	Size     int64  `json:"size,omitempty"`
}
