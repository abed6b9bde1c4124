package marker

import (
	"context"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/model"
	nlog "github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/metrics"
	"github.com/yeisme/docvault/pkg/queue"
)

// applyRemove 单消费者协程内执行的清除算法：
//  1. 该 owner 在条目上没有"新"标签时立即返回（no-op）；
//  2. 扣减值：文件恒为 1，文件夹为其自身存储的计数
//     （代表它为该 owner 汇总的未读后代数）；
//  3. 从父目录到根逐级扣减，计数降到 0 及以下的标签整行删除
//     （标签只在计数为正时存在）；
//  4. 恰好失效一个缓存键：该 owner 对应的根桶.
func (e *Engine) applyRemove(ctx context.Context, entry model.Entry, owner string) error {
	leaf, err := e.tree.Tag(ctx, owner, entry.GetID(), entry.GetEntryType(), model.TagNew)
	if err != nil {
		return err
	}

	if leaf == nil {
		return nil
	}

	value := 1
	if entry.GetEntryType() == model.EntryFolder && leaf.Count > 0 {
		value = leaf.Count
	}

	if err := e.tree.DeleteTag(ctx, owner, entry.GetID(), entry.GetEntryType(), model.TagNew); err != nil {
		return err
	}

	chain, err := e.chainOf(ctx, entry)
	if err != nil {
		return err
	}

	for i := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.dropTag(ctx, owner, chain[i].ID, value); err != nil {
			return err
		}
	}

	bucket := bucketFor(entry, rootOf(entry, chain), owner)
	if bucket != "" {
		if err := e.dropTag(ctx, owner, bucket, value); err != nil {
			return err
		}
	}

	e.invalidate(ctx, owner, bucket)
	metrics.MarkerApplied.WithLabelValues("remove").Inc()

	evCfg := configs.GetConfig().Events
	if e.pub != nil && evCfg.Enabled && evCfg.Marker.Cleared {
		payload := queue.MarkerPayload{
			Owner:     owner,
			EntryID:   entry.GetID(),
			EntryType: string(entry.GetEntryType()),
		}
		if err := queue.PublishMarkerCleared(e.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Debug().Err(err).Str("entry", entry.GetID()).Msg("publish cleared event failed")
		}
	}

	return nil
}

// dropTag 祖先/根桶计数 -value. 缺行按"已不存在"跳过，不视为错误.
func (e *Engine) dropTag(ctx context.Context, owner, entryID string, value int) error {
	t, err := e.tree.Tag(ctx, owner, entryID, model.EntryFolder, model.TagNew)
	if err != nil {
		return err
	}

	if t == nil {
		return nil
	}

	if next := t.Count - value; next > 0 {
		return e.tree.SetTagCount(ctx, t.RowID, next)
	}

	return e.tree.DeleteTag(ctx, owner, entryID, model.EntryFolder, model.TagNew)
}
