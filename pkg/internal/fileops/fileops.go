// Package fileops 实现可取消的后台批量操作引擎：打包下载、移动/复制、
// 删除与标记已读. 每次提交的任务在独立协程中执行，提交时捕获主体与
// 语言环境，协作式取消，条目级失败记录后跳过，任务级失败终结任务.
//
// 任务状态机：Queued → Running → {Completed | Failed | Canceled}，
// 三种终态统一以 finished=true 表示，由 result/error 区分；任务终结后
// 不会重新进入 Running.
package fileops

import (
	"context"
	"errors"

	"github.com/yeisme/docvault/pkg/internal/model"
)

// 任务级/条目级错误哨兵.
var (
	// ErrJobNotFound 任务不存在（已被取走或从未提交）.
	ErrJobNotFound = errors.New("fileops: job not found")
	// ErrForbidden 主体对顶层作用域无权限，任务级终结.
	ErrForbidden = errors.New("fileops: access denied")
	// ErrNotFound 顶层源条目缺失，任务级终结.
	ErrNotFound = errors.New("fileops: entry not found")
	// ErrCanceled 协作式取消被观察到.
	ErrCanceled = errors.New("fileops: operation canceled")
	// ErrTooLarge 单个条目超过压缩包条目大小上限，条目级跳过.
	ErrTooLarge = errors.New("fileops: entry exceeds size limit")
)

// ConflictResolution 移动/复制时目标已有同名条目的处理策略.
type ConflictResolution string

const (
	ConflictSkip      ConflictResolution = "skip"      // 跳过该条目
	ConflictOverwrite ConflictResolution = "overwrite" // 覆盖目标条目
	ConflictDuplicate ConflictResolution = "duplicate" // 改名共存
)

// Request 一次批量操作请求. Kind 决定哪些字段生效.
type Request struct {
	Kind      model.OperationKind `json:"kind"       rule:"required,oneof=download move copy delete mark_read"`
	FolderIDs []string            `json:"folder_ids"`
	FileIDs   []string            `json:"file_ids"`

	// Rename 下载专用：文件 id → 目标扩展名（含点），触发格式转换
	Rename map[string]string `json:"rename,omitempty"`

	// TargetFolderID 移动/复制的目标文件夹
	TargetFolderID string             `json:"target_folder_id,omitempty"`
	Resolve        ConflictResolution `json:"resolve,omitempty" rule:"omitempty,oneof=skip overwrite duplicate"`

	// Permanent 删除时绕过回收站
	Permanent bool `json:"permanent,omitempty"`
}

// Marker 标记引擎的窄接口：下载与删除操作的"已读/清除"副作用经由它.
type Marker interface {
	// RemoveNew 清除单个 owner 在条目上的"新"标记（同步，等待应用完成）.
	RemoveNew(ctx context.Context, e model.Entry, owner string) error
	// RemoveNewForAll 清除条目上所有 owner 的"新"标记.
	RemoveNewForAll(ctx context.Context, e model.Entry) error
}

// operation 具体操作的共享生命周期接口. Total 先行计算总步数用于
// 进度估算，Do 执行并经 step 回调汇报每个已处理条目.
type operation interface {
	// Total 计算总步数：文件计 1 步，文件夹计 1 步加可廉价统计的后代数.
	Total(ctx context.Context) (int, error)
	// Do 执行操作. 返回的错误为任务级错误；条目级失败通过 itemErr 记录.
	Do(ctx context.Context, jobID string) error
}
