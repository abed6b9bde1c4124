// Package queue 定义消息主题常量与通配模式，供发布/订阅使用.
package queue

// 主题命名规范：dv.<域>.<动作>[.<状态>]，尽量稳定且向后兼容.
// 域：operation(批量操作)、marker(新标记)、archive(压缩产物)
// 动作/状态：提交(submitted)、完成(finished)、取消(canceled)、失败(failed)

const (
	// 批量操作领域.
	TopicOperationSubmitted = "dv.operation.submitted" // 操作已入队，后台协程开始执行
	TopicOperationFinished  = "dv.operation.finished"  // 操作终结（完成/失败/取消后统一发布）
	TopicOperationCanceled  = "dv.operation.canceled"  // 用户显式请求取消

	// 新标记领域.
	TopicMarkerMarked  = "dv.marker.marked"  // 条目被标记为"新"（含祖先计数更新）
	TopicMarkerCleared = "dv.marker.cleared" // 条目的"新"标记被清除

	// 压缩产物领域.
	TopicArchiveReady   = "dv.archive.ready"   // 批量下载压缩包已写入临时桶，可取回
	TopicArchiveExpired = "dv.archive.expired" // 过期压缩包被清理任务删除
)
