// Package security 提供条目级权限判定. 核心引擎只消费 Filter 接口；
// 默认实现基于授权表（条目自身与祖先链上的授权取最高级别）.
package security

import (
	"context"

	"github.com/yeisme/docvault/pkg/internal/model"
)

// Principal 一次请求的主体，在任务提交时捕获一次，随任务传递，
// 不依赖任何线程/进程级环境状态.
type Principal struct {
	ID string `json:"id"`
	// Locale 提交时的语言环境，错误消息按此本地化
	Locale string `json:"locale,omitempty"`
	Admin  bool   `json:"admin,omitempty"`
}

// Filter 权限过滤接口.
type Filter interface {
	CanRead(ctx context.Context, p Principal, e model.Entry) (bool, error)
	CanEdit(ctx context.Context, p Principal, e model.Entry) (bool, error)
	CanDelete(ctx context.Context, p Principal, e model.Entry) (bool, error)
	// FilterReadable 返回 entries 中 p 可读的子集，保持原顺序.
	FilterReadable(ctx context.Context, p Principal, entries []model.Entry) ([]model.Entry, error)
	// WhoCanRead 返回当前可读 e 的全部主体 id.
	WhoCanRead(ctx context.Context, e model.Entry) ([]string, error)
	// ProjectTeam 项目成员列表（项目空间条目的可见主体集）.
	ProjectTeam(ctx context.Context, projectID string) ([]string, error)
	// IsGuest 主体是否为无编辑能力的访客账号.
	IsGuest(ctx context.Context, subject string) (bool, error)
}
