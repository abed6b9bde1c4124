// Package jobs 负责注册与实现业务定时任务（基于 scheduler）。
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/docvault/pkg/configs"
	ctxPkg "github.com/yeisme/docvault/pkg/context"
	"github.com/yeisme/docvault/pkg/internal/blob"
	"github.com/yeisme/docvault/pkg/internal/fileops"
	"github.com/yeisme/docvault/pkg/internal/storage"
	"github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/queue"
	"github.com/yeisme/docvault/pkg/scheduler"
)

// RegisterCronJobs 配置业务定时任务：
//   - 每 10 分钟清理终结后超时未取走的操作记录
//   - 每小时 15 分清理对象存储中过期的临时压缩包
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, ops *fileops.Engine, blobs blob.Store) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	// 将 storage manager 注入到 context，便于任务内访问存储
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	// 每 10 分钟清理过期操作记录
	_ = sched.AddCron(JobOperationsSweep, CronOperationsSweep, func(ctx context.Context) {
		runOperationsSweep(ctx, ops)
	}, baseCtx)

	// 每小时清理过期临时压缩包
	pub := mgr.GetMQClient().Publisher()

	_ = sched.AddCron(JobArchiveTempClean, CronArchiveTempClean, func(ctx context.Context) {
		runArchiveTempClean(ctx, blobs, pub)
	}, baseCtx)

	return nil
}

// runOperationsSweep 清理终结后超过保留期仍未取走的操作记录.
func runOperationsSweep(ctx context.Context, ops *fileops.Engine) {
	l := log.Logger().With().Str("job", JobOperationsSweep).Logger()

	if ops == nil {
		l.Warn().Msg("operations engine not initialized")
		return
	}

	ttl := configs.GetConfig().Operations.ResultTTL()

	n, err := ops.Sweep(ctx, ttl)
	if err != nil {
		l.Error().Err(err).Msg("sweep operations failed")
		return
	}

	if n > 0 {
		l.Info().Int("removed", n).Dur("ttl", ttl).Msg("swept stale operations")
	}
}

// runArchiveTempClean 删除对象存储中超过保留期的临时压缩包，
// 每个删除成功的产物发布 dv.archive.expired 事件.
// 未取走的产物由此兜底回收（正常路径是取回后立即删除）.
func runArchiveTempClean(ctx context.Context, blobs blob.Store, pub message.Publisher) {
	l := log.Logger().With().Str("job", JobArchiveTempClean).Logger()

	if blobs == nil {
		l.Warn().Msg("blob store not initialized")
		return
	}

	cutoff := time.Now().Add(-configs.GetConfig().Operations.ArchiveTTL())

	paths, err := blobs.ListTempOlderThan(ctx, cutoff)
	if err != nil {
		l.Error().Err(err).Msg("list expired archives failed")
		return
	}

	evCfg := configs.GetConfig().Events
	notify := pub != nil && evCfg.Enabled && evCfg.Operation.ArchiveExpired

	for _, p := range paths {
		if e := blobs.DeleteTemp(ctx, p); e != nil {
			l.Error().Err(e).Str("path", p).Msg("delete expired archive failed")
			continue
		}

		l.Info().Str("path", p).Time("cutoff", cutoff).Msg("deleted expired archive")

		if !notify {
			continue
		}

		payload := queue.ArchivePayload{Owner: blob.TempArchiveOwner(p), TempPath: p}
		if err := queue.PublishArchiveExpired(pub, payload, queue.WithProducer("docvault")); err != nil {
			l.Debug().Err(err).Str("path", p).Msg("publish archive expired event failed")
		}
	}
}
