package marker

import (
	"context"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/model"
	nlog "github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/metrics"
	"github.com/yeisme/docvault/pkg/queue"
)

// applyMark 单消费者协程内执行的标记算法：
//  1. 解析目标用户集（显式列表 / 可读用户 / 项目成员），剔除动作发起者，
//     外部连接器条目剔除访客；
//  2. 已有"新"标签的用户整体跳过（幂等，防止重复通知双重计数）；
//  3. 为条目本身建单例标签，祖先链逐级 +1，合成根桶 +1；
//  4. 每个受影响 (用户, 根桶) 的缓存失效.
func (e *Engine) applyMark(ctx context.Context, entry model.Entry, actor string, explicit []string) error {
	if entry.BrokenError() != "" {
		return nil
	}

	chain, err := e.chainOf(ctx, entry)
	if err != nil {
		return err
	}

	viewers, err := e.resolveViewers(ctx, entry, chain, actor, explicit)
	if err != nil {
		return err
	}

	if len(viewers) == 0 {
		return nil
	}

	chainRoot := rootOf(entry, chain)

	for _, v := range viewers {
		leaf, err := e.tree.Tag(ctx, v, entry.GetID(), entry.GetEntryType(), model.TagNew)
		if err != nil {
			return err
		}

		if leaf != nil {
			// 该用户已有标签：重复标记整体跳过
			continue
		}

		if err := e.tree.SaveTag(ctx, &model.Tag{
			Owner:     v,
			EntryID:   entry.GetID(),
			EntryType: entry.GetEntryType(),
			Type:      model.TagNew,
			Count:     1,
		}); err != nil {
			return err
		}

		for i := range chain {
			if err := e.bumpTag(ctx, v, chain[i].ID, 1); err != nil {
				return err
			}
		}

		bucket := bucketFor(entry, chainRoot, v)
		if bucket != "" {
			if err := e.bumpTag(ctx, v, bucket, 1); err != nil {
				return err
			}
		}

		e.invalidate(ctx, v, bucket)
	}

	metrics.MarkerApplied.WithLabelValues("mark").Inc()

	evCfg := configs.GetConfig().Events
	if e.pub != nil && evCfg.Enabled && evCfg.Marker.Marked {
		payload := queue.MarkerPayload{
			EntryID:   entry.GetID(),
			EntryType: string(entry.GetEntryType()),
		}
		if err := queue.PublishMarkerMarked(e.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Debug().Err(err).Str("entry", entry.GetID()).Msg("publish marked event failed")
		}
	}

	return nil
}

// resolveViewers 解析目标用户集.
func (e *Engine) resolveViewers(ctx context.Context, entry model.Entry, chain []model.Folder, actor string, explicit []string) ([]string, error) {
	var (
		raw []string
		err error
	)

	switch {
	case len(explicit) > 0:
		raw = explicit
	case entry.GetRootType() == model.RootProject:
		// 项目空间由项目成员（而非公开读过滤）决定可见集
		pid := projectIDOf(entry, chain)
		if pid == "" {
			return nil, nil
		}

		raw, err = e.filter.ProjectTeam(ctx, pid)
	default:
		raw, err = e.filter.WhoCanRead(ctx, entry)
	}

	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, v := range raw {
		if v == "" || v == actor {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}

		if entry.IsProvider() {
			guest, err := e.filter.IsGuest(ctx, v)
			if err != nil {
				return nil, err
			}

			if guest {
				continue
			}
		}

		out = append(out, v)
	}

	return out, nil
}

// bumpTag 祖先/根桶计数 +delta：缺行按"待创建"处理而不是报错.
func (e *Engine) bumpTag(ctx context.Context, owner, entryID string, delta int) error {
	t, err := e.tree.Tag(ctx, owner, entryID, model.EntryFolder, model.TagNew)
	if err != nil {
		return err
	}

	if t == nil {
		return e.tree.SaveTag(ctx, &model.Tag{
			Owner:     owner,
			EntryID:   entryID,
			EntryType: model.EntryFolder,
			Type:      model.TagNew,
			Count:     delta,
		})
	}

	return e.tree.SetTagCount(ctx, t.RowID, t.Count+delta)
}

// chainOf 条目父目录向上到根的文件夹链（近祖先在前）.
func (e *Engine) chainOf(ctx context.Context, entry model.Entry) ([]model.Folder, error) {
	if entry.GetParentID() == "" {
		return nil, nil
	}

	return e.tree.ParentChain(ctx, entry.GetParentID())
}

// rootOf 链尾即根；无链的顶层文件夹以自身为根.
func rootOf(entry model.Entry, chain []model.Folder) *model.Folder {
	if len(chain) > 0 {
		return &chain[len(chain)-1]
	}

	if f, ok := entry.(*model.Folder); ok {
		return f
	}

	return nil
}

// projectIDOf 就近取项目归属：条目自身或祖先链上首个带项目 id 的文件夹.
func projectIDOf(entry model.Entry, chain []model.Folder) string {
	if f, ok := entry.(*model.Folder); ok && f.ProjectID != "" {
		return f.ProjectID
	}

	for i := range chain {
		if chain[i].ProjectID != "" {
			return chain[i].ProjectID
		}
	}

	return ""
}

// bucketFor 条目对某用户的根桶归属. 回收站条目不计数.
// 个人/连接器树：根属于该用户时计入"我的文件"，否则条目仅经共享
// 可见，计入"共享给我".
func bucketFor(entry model.Entry, chainRoot *model.Folder, viewer string) string {
	switch entry.GetRootType() {
	case model.RootTrash:
		return ""
	case model.RootCommon:
		return RootCommon
	case model.RootShare:
		return RootShare
	case model.RootProject:
		return RootProjects
	}

	if chainRoot != nil {
		if chainRoot.CreatorID == viewer {
			return RootMy
		}

		return RootShare
	}

	if entry.GetCreatorID() == viewer {
		return RootMy
	}

	return RootShare
}
