package fileops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/blob"
	"github.com/yeisme/docvault/pkg/internal/convert"
	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	nlog "github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/metrics"
	"github.com/yeisme/docvault/pkg/queue"
)

// Engine 后台批量操作引擎. 每个任务独立协程执行，任务表进程内共享，
// 终态快照经 Journal 落库.
type Engine struct {
	tree    tree.Accessor
	filter  security.Filter
	blobs   blob.Store
	conv    convert.Service
	marks   Marker
	pub     message.Publisher
	journal Journal

	store *jobStore
}

// Options Engine 的依赖集合. Marker、Publisher、Journal 可为 nil，
// 对应副作用按可用降级（不发事件/不落库/不清标记）.
type Options struct {
	Tree      tree.Accessor
	Filter    security.Filter
	Blobs     blob.Store
	Convert   convert.Service
	Marker    Marker
	Publisher message.Publisher
	Journal   Journal
}

// NewEngine 创建操作引擎.
func NewEngine(opts Options) *Engine {
	conv := opts.Convert
	if conv == nil {
		conv = convert.Noop{}
	}

	return &Engine{
		tree:    opts.Tree,
		filter:  opts.Filter,
		blobs:   opts.Blobs,
		conv:    conv,
		marks:   opts.Marker,
		pub:     opts.Publisher,
		journal: opts.Journal,
		store:   newJobStore(),
	}
}

// Submit 提交一个批量操作，返回排队态快照. 主体与语言环境在此刻捕获，
// 执行协程全程使用该副本，不读取任何环境态.
func (e *Engine) Submit(ctx context.Context, p security.Principal, req Request) (Snapshot, error) {
	op, err := e.buildOperation(p, req)
	if err != nil {
		return Snapshot{}, err
	}

	now := time.Now()
	job := &Job{
		ID:        newJobID(),
		Owner:     p.ID,
		Kind:      req.Kind,
		Principal: p,
		Sources:   append(append([]string{}, req.FolderIDs...), req.FileIDs...),
		CreatedAt: now,
		UpdatedAt: now,
	}

	// 任务生命周期独立于提交请求：保留请求值（追踪、存储管理器），
	// 剥离其取消与超时
	jctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	job.cancel = cancel

	e.store.put(job)
	metrics.OperationsSubmitted.WithLabelValues(string(req.Kind)).Inc()

	evCfg := configs.GetConfig().Events
	if e.pub != nil && evCfg.Enabled && evCfg.Operation.Submitted {
		payload := queue.OperationSubmittedPayload{
			OperationRef: queue.OperationRef{OperationID: job.ID, Owner: job.Owner, Kind: string(job.Kind)},
			Folders:      len(req.FolderIDs),
			Files:        len(req.FileIDs),
		}
		if err := queue.PublishOperationSubmitted(e.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("job", job.ID).Msg("publish submitted event failed")
		}
	}

	go e.run(jctx, job.ID, op)

	snap, _ := e.store.get(job.ID)

	return snap, nil
}

// buildOperation 按 Kind 构造具体操作并做请求校验.
func (e *Engine) buildOperation(p security.Principal, req Request) (operation, error) {
	if len(req.FolderIDs) == 0 && len(req.FileIDs) == 0 {
		return nil, fmt.Errorf("fileops: empty source selection")
	}

	switch req.Kind {
	case model.OperationDownload:
		return &downloadOp{engine: e, principal: p, folderIDs: req.FolderIDs, fileIDs: req.FileIDs, rename: req.Rename}, nil
	case model.OperationMove, model.OperationCopy:
		if req.TargetFolderID == "" {
			return nil, fmt.Errorf("fileops: %s requires a target folder", req.Kind)
		}

		resolve := req.Resolve
		if resolve == "" {
			resolve = ConflictSkip
		}

		return &transferOp{
			engine: e, principal: p,
			folderIDs: req.FolderIDs, fileIDs: req.FileIDs,
			targetID: req.TargetFolderID, copies: req.Kind == model.OperationCopy, resolve: resolve,
		}, nil
	case model.OperationDelete:
		return &deleteOp{engine: e, principal: p, folderIDs: req.FolderIDs, fileIDs: req.FileIDs, permanent: req.Permanent}, nil
	case model.OperationMarkRead:
		return &markReadOp{engine: e, principal: p, folderIDs: req.FolderIDs, fileIDs: req.FileIDs}, nil
	default:
		return nil, fmt.Errorf("fileops: unknown operation kind %q", req.Kind)
	}
}

// run 任务执行协程. 终结路径在 defer 中保证：无论正常返回、任务级错误
// 还是 panic，任务恰好一次转入 finished=true，终结本身的次级失败被吞掉.
func (e *Engine) run(ctx context.Context, jobID string, op operation) {
	defer e.finalize(jobID)

	e.store.update(jobID, func(j *Job) {
		j.Started = true
		j.UpdatedAt = time.Now()
	})

	total, err := op.Total(ctx)
	if err != nil {
		e.recordOutcome(jobID, err)
		return
	}

	e.store.update(jobID, func(j *Job) {
		j.Total = total
		j.UpdatedAt = time.Now()
	})

	e.recordOutcome(jobID, op.Do(ctx, jobID))
}

// recordOutcome 任务级错误分类：鉴权失败 / 取消 / 其他.
func (e *Engine) recordOutcome(jobID string, err error) {
	if err == nil {
		return
	}

	e.store.update(jobID, func(j *Job) {
		switch {
		case errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled):
			j.Canceled = true
			j.Error = "canceled"
			// 取消丢弃部分结果，但不把已处理条目标记为失败
			j.Result = ""
		case errors.Is(err, ErrForbidden):
			j.Error = fmt.Sprintf("access denied: %v", err)
		default:
			j.Error = err.Error()
		}

		j.UpdatedAt = time.Now()
	})
}

// finalize 任务终结：置 finished、落库、发事件、记指标.
// 在 defer 中调用，panic 转为任务错误，次级失败只记日志.
func (e *Engine) finalize(jobID string) {
	if r := recover(); r != nil {
		e.store.update(jobID, func(j *Job) {
			j.Error = fmt.Sprintf("internal error: %v", r)
		})
		nlog.Logger().Error().Str("job", jobID).Interface("panic", r).Msg("operation worker panicked")
	}

	now := time.Now()
	snap, ok := e.store.update(jobID, func(j *Job) {
		if j.Finished {
			return
		}

		j.Finished = true
		j.Hold = true
		j.FinishedAt = now
		j.UpdatedAt = now

		if !j.Canceled && (j.Result != "" || j.Error == "") {
			j.Progress = 100
		}

		if j.cancel != nil {
			j.cancel()
		}
	})
	if !ok {
		return
	}

	metrics.OperationsFinished.WithLabelValues(string(snap.Kind), string(snap.Status)).Inc()

	if e.journal != nil {
		row := e.toRow(jobID, snap)
		if err := e.journal.SaveOperation(context.Background(), row); err != nil {
			nlog.Logger().Warn().Err(err).Str("job", jobID).Msg("persist operation snapshot failed")
		}
	}

	evCfg := configs.GetConfig().Events
	if e.pub != nil && evCfg.Enabled && evCfg.Operation.Finished {
		payload := queue.OperationFinishedPayload{
			OperationRef: queue.OperationRef{OperationID: snap.ID, Owner: snap.Owner, Kind: string(snap.Kind)},
			Processed:    snap.Processed,
			Total:        snap.Total,
			Error:        snap.Error,
			Canceled:     snap.Status == StatusCanceled,
		}
		if err := queue.PublishOperationFinished(e.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("job", jobID).Msg("publish finished event failed")
		}
	}
}

func (e *Engine) toRow(jobID string, snap Snapshot) *model.OperationRow {
	e.store.mu.RLock()
	var sources []string
	if j, ok := e.store.jobs[jobID]; ok {
		sources = j.Sources
	}
	e.store.mu.RUnlock()

	return &model.OperationRow{
		ID:        snap.ID,
		Owner:     snap.Owner,
		Kind:      snap.Kind,
		Sources:   encodeSources(sources),
		Progress:  snap.Progress,
		Processed: snap.Processed,
		Total:     snap.Total,
		Result:    snap.Result,
		Error:     snap.Error,
		Finished:  snap.Finished,
		Hold:      snap.Hold,
	}
}

// Poll 取任务快照. 内存表未命中时回落到落库的终态行（进程重启场景）.
func (e *Engine) Poll(ctx context.Context, jobID string) (Snapshot, error) {
	if snap, ok := e.store.get(jobID); ok {
		return snap, nil
	}

	if e.journal != nil {
		row, err := e.journal.Operation(ctx, jobID)
		if err != nil {
			return Snapshot{}, err
		}

		if row != nil {
			return rowSnapshot(row), nil
		}
	}

	return Snapshot{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
}

func rowSnapshot(row *model.OperationRow) Snapshot {
	status := StatusCompleted

	switch {
	case row.Error == "canceled":
		status = StatusCanceled
	case row.Result == "" && row.Error != "":
		status = StatusFailed
	}

	return Snapshot{
		ID:        row.ID,
		Owner:     row.Owner,
		Kind:      row.Kind,
		Status:    status,
		Progress:  row.Progress,
		Processed: row.Processed,
		Total:     row.Total,
		Result:    row.Result,
		Error:     row.Error,
		Finished:  row.Finished,
		Hold:      row.Hold,
	}
}

// Cancel 请求协作式取消. 已终结的任务为幂等 no-op.
func (e *Engine) Cancel(ctx context.Context, jobID string) (Snapshot, error) {
	snap, ok := e.store.update(jobID, func(j *Job) {
		if j.Finished {
			return
		}

		if j.cancel != nil {
			j.cancel()
		}
	})
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	evCfg := configs.GetConfig().Events
	if e.pub != nil && evCfg.Enabled && evCfg.Operation.Canceled && !snap.Finished {
		payload := queue.OperationCanceledPayload{
			OperationRef: queue.OperationRef{OperationID: snap.ID, Owner: snap.Owner, Kind: string(snap.Kind)},
		}
		if err := queue.PublishOperationCanceled(e.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Warn().Err(err).Str("job", jobID).Msg("publish canceled event failed")
		}
	}

	return snap, nil
}

// Finish 客户端确认已取走结果：释放 hold，任务记录随之可回收.
func (e *Engine) Finish(ctx context.Context, jobID string) (Snapshot, error) {
	snap, ok := e.store.get(jobID)
	if !ok {
		if e.journal != nil {
			row, err := e.journal.Operation(ctx, jobID)
			if err != nil {
				return Snapshot{}, err
			}

			if row != nil {
				if err := e.journal.SetOperationHold(ctx, jobID, false); err != nil {
					return Snapshot{}, err
				}

				row.Hold = false

				return rowSnapshot(row), nil
			}
		}

		return Snapshot{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}

	if !snap.Finished {
		return snap, fmt.Errorf("fileops: job %s still running", jobID)
	}

	e.store.remove(jobID)

	if e.journal != nil {
		if err := e.journal.SetOperationHold(ctx, jobID, false); err != nil {
			nlog.Logger().Warn().Err(err).Str("job", jobID).Msg("release hold failed")
		}
	}

	snap.Hold = false

	return snap, nil
}

// Sweep 清理终结超过 ttl 仍未被取走的内存任务记录与落库行，
// 返回清理的内存记录数. 由定时任务驱动.
func (e *Engine) Sweep(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	ids := e.store.expired(cutoff)
	for _, id := range ids {
		e.store.remove(id)
	}

	if e.journal != nil {
		if _, err := e.journal.PurgeOperationsBefore(ctx, cutoff); err != nil {
			return len(ids), err
		}
	}

	return len(ids), nil
}

// step 处理完一个条目后推进进度并重发快照.
func (e *Engine) step(jobID string, n int) {
	e.store.update(jobID, func(j *Job) {
		j.Processed += n
		if j.Total > 0 {
			j.Progress = min(100, 100*j.Processed/j.Total)
		}

		j.UpdatedAt = time.Now()
	})
}

// itemErr 条目级失败：追加到任务错误串，任务继续.
func (e *Engine) itemErr(jobID string, kind model.OperationKind, err error) {
	metrics.OperationItemErrors.WithLabelValues(string(kind)).Inc()

	e.store.update(jobID, func(j *Job) {
		if j.Error != "" {
			j.Error += "; "
		}

		j.Error += err.Error()
		j.UpdatedAt = time.Now()
	})
}

// setResult 设置结果引用（压缩包取回地址等）.
func (e *Engine) setResult(jobID, result string) {
	e.store.update(jobID, func(j *Job) {
		j.Result = result
		j.UpdatedAt = time.Now()
	})
}

// checkCanceled 循环边界上的协作式取消检查.
func checkCanceled(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrCanceled, ctx.Err())
	default:
		return nil
	}
}
