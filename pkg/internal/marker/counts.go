package marker

import (
	"context"

	"github.com/yeisme/docvault/pkg/cache"
	"github.com/yeisme/docvault/pkg/internal/model"
	nlog "github.com/yeisme/docvault/pkg/log"
)

// GetNewCounts 返回 owner 在四个根桶上的未读计数. 读路径不经队列：
// 先查缓存，未命中的桶批量落到标签表，回填缓存时确认为空的桶
// 显式写 0，与"未知"区分.
func (e *Engine) GetNewCounts(ctx context.Context, owner string) (map[string]int, error) {
	out := make(map[string]int, len(Buckets))

	missing := Buckets
	if e.cache != nil {
		missing = missing[:0:0]

		for _, b := range Buckets {
			if v, err := cache.Get[int](ctx, e.cache, cacheKey(owner, b)); err == nil {
				out[b] = v
			} else {
				missing = append(missing, b)
			}
		}
	}

	for _, b := range missing {
		t, err := e.tree.Tag(ctx, owner, b, model.EntryFolder, model.TagNew)
		if err != nil {
			return nil, err
		}

		n := 0
		if t != nil {
			n = t.Count
		}

		out[b] = n

		if e.cache != nil {
			if err := cache.Set(ctx, e.cache, cacheKey(owner, b), n, cacheTTL()); err != nil {
				nlog.Logger().Debug().Err(err).Str("bucket", b).Msg("cache count failed")
			}
		}
	}

	return out, nil
}

// ListNewEntries 列出文件夹子树中对 owner 仍为"新"的条目.
// 依据树和不变式，仅带标签的子文件夹之下才可能有未读后代，
// 未带标签的分支整体剪枝.
func (e *Engine) ListNewEntries(ctx context.Context, folderID, owner string) ([]model.Entry, error) {
	if _, err := e.tree.Folder(ctx, folderID); err != nil {
		return nil, err
	}

	var out []model.Entry
	if err := e.listNew(ctx, folderID, owner, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (e *Engine) listNew(ctx context.Context, folderID, owner string, acc *[]model.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	files, err := e.tree.ChildFiles(ctx, folderID)
	if err != nil {
		return err
	}

	folders, err := e.tree.ChildFolders(ctx, folderID)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(files)+len(folders))
	for i := range files {
		ids = append(ids, files[i].ID)
	}

	for i := range folders {
		ids = append(ids, folders[i].ID)
	}

	tags, err := e.tree.OwnerTags(ctx, owner, ids, model.TagNew)
	if err != nil {
		return err
	}

	tagged := make(map[string]struct{}, len(tags))
	for i := range tags {
		tagged[tags[i].EntryID] = struct{}{}
	}

	for i := range files {
		if _, ok := tagged[files[i].ID]; ok {
			*acc = append(*acc, &files[i])
		}
	}

	for i := range folders {
		if _, ok := tagged[folders[i].ID]; !ok {
			continue
		}

		*acc = append(*acc, &folders[i])

		if err := e.listNew(ctx, folders[i].ID, owner, acc); err != nil {
			return err
		}
	}

	return nil
}
