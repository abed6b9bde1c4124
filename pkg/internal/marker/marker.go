// Package marker 实现每用户"新条目"标记引擎：条目被创建时为可见用户
// 打上"新"标记，并沿祖先链维护每个文件夹的未读后代计数；条目被阅读
// 或移动时逐级扣减. 同一标签行的读改写都经进程内单消费者队列串行化，
// 避免并发创建场景下的丢失更新.
//
// 四个逻辑根桶（我的文件 / 公共 / 共享给我 / 项目）各有一行合成根
// 标签作为桶级计数的权威来源，根桶计数带 TTL 缓存，写路径在标签
// 提交后显式失效；缓存未命中表示"未知"而非零，确认为空时缓存显式 0.
package marker

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/docvault/pkg/cache"
	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	nlog "github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/metrics"
)

// 根桶键. 合成根标签行以桶键作为 EntryID 落库，每 owner 一行.
const (
	RootMy       = "@my"
	RootCommon   = "@common"
	RootShare    = "@share"
	RootProjects = "@projects"
)

// Buckets 全部根桶键，GetNewCounts 的返回键集合.
var Buckets = []string{RootMy, RootCommon, RootShare, RootProjects}

// Engine 标记引擎. 变更请求经有界通道进入单消费者协程；
// 通道满时入队阻塞（感知 ctx），溢出策略显式为背压而非丢弃.
type Engine struct {
	tree   tree.Accessor
	filter security.Filter
	cache  *cache.Cache
	pub    message.Publisher

	reqs chan request
	done chan struct{}
}

type request struct {
	apply func(ctx context.Context) error
	// reply 非 nil 表示调用方等待应用完成（RemoveNew 语义）
	reply chan error
}

// NewEngine 创建标记引擎. cache 与 pub 可为 nil（不缓存/不发事件）.
// 需调用 Run 启动消费协程.
func NewEngine(t tree.Accessor, f security.Filter, c *cache.Cache, pub message.Publisher) *Engine {
	size := configs.GetConfig().Marker.QueueSize
	if size <= 0 {
		size = 1
	}

	return &Engine{
		tree:   t,
		filter: f,
		cache:  c,
		pub:    pub,
		reqs:   make(chan request, size),
		done:   make(chan struct{}),
	}
}

// Run 单消费者循环，ctx 取消后退出. 必须恰好运行一个.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-e.reqs:
			metrics.MarkerQueueDepth.Set(float64(len(e.reqs)))

			err := req.apply(ctx)
			if req.reply != nil {
				req.reply <- err
			} else if err != nil {
				nlog.Logger().Warn().Err(err).Msg("marker mutation failed")
			}
		}
	}
}

// Done 消费协程退出后关闭.
func (e *Engine) Done() <-chan struct{} { return e.done }

// enqueue 入队一个变更. wait 为真时等待消费者应用完成并返回其错误.
func (e *Engine) enqueue(ctx context.Context, fn func(context.Context) error, wait bool) error {
	req := request{apply: fn}
	if wait {
		req.reply = make(chan error, 1)
	}

	select {
	case e.reqs <- req:
		metrics.MarkerQueueDepth.Set(float64(len(e.reqs)))
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return fmt.Errorf("marker: engine stopped")
	}

	if !wait {
		return nil
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MarkNew 为可见用户打"新"标记（异步，入队即返回）. viewers 为空时
// 目标用户集按可读性解析，见 applyMark.
func (e *Engine) MarkNew(ctx context.Context, entry model.Entry, actor string, viewers ...string) error {
	return e.enqueue(ctx, func(c context.Context) error {
		return e.applyMark(c, entry, actor, viewers)
	}, false)
}

// RemoveNew 清除单个 owner 的"新"标记（同步，等待应用）. 阅读路径
// 内联调用：响应构建前 owner 自己的计数必须已更新.
func (e *Engine) RemoveNew(ctx context.Context, entry model.Entry, owner string) error {
	return e.enqueue(ctx, func(c context.Context) error {
		return e.applyRemove(c, entry, owner)
	}, true)
}

// RemoveNewForAll 清除条目上全部 owner 的"新"标记. 计数按 owner
// 独立，没有更廉价的批量路径，逐 owner 应用.
func (e *Engine) RemoveNewForAll(ctx context.Context, entry model.Entry) error {
	return e.enqueue(ctx, func(c context.Context) error {
		tags, err := e.tree.EntryTags(c, entry.GetID(), entry.GetEntryType(), model.TagNew)
		if err != nil {
			return err
		}

		for i := range tags {
			if err := e.applyRemove(c, entry, tags[i].Owner); err != nil {
				return err
			}
		}

		return nil
	}, true)
}

// cacheKey 根桶计数缓存键.
func cacheKey(owner, bucket string) string {
	return "marker:newcount:" + owner + ":" + bucket
}

// invalidate 标签写提交后的缓存失效. 失败只记日志，TTL 兜底.
func (e *Engine) invalidate(ctx context.Context, owner, bucket string) {
	if e.cache == nil || bucket == "" {
		return
	}

	if err := e.cache.Delete(ctx, cacheKey(owner, bucket)); err != nil {
		nlog.Logger().Debug().Err(err).Str("owner", owner).Str("bucket", bucket).Msg("invalidate count cache failed")
	}
}

// cacheTTL 根桶计数缓存时长.
func cacheTTL() time.Duration {
	return configs.GetConfig().Marker.CacheTTL()
}
