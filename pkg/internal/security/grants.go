package security

import (
	"context"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/storage/db"
	"github.com/yeisme/docvault/pkg/internal/tree"
)

// GrantFilter 基于授权表的 Filter 实现.
type GrantFilter struct {
	dbClient *db.Client
	tree     tree.Accessor
}

// NewGrantFilter 创建 GrantFilter.
func NewGrantFilter(dbClient *db.Client, t tree.Accessor) *GrantFilter {
	return &GrantFilter{dbClient: dbClient, tree: t}
}

// Migrate 建表.
func (g *GrantFilter) Migrate() error {
	return g.dbClient.GetDB().AutoMigrate(
		&model.AccessGrant{}, &model.Account{}, &model.ProjectMember{},
	)
}

// effectiveMode 条目自身与祖先链上的最高授权级别. 无授权时返回 0.
func (g *GrantFilter) effectiveMode(ctx context.Context, subject string, e model.Entry) (model.GrantMode, error) {
	if subject == e.GetCreatorID() {
		return model.GrantFull, nil
	}

	// 公共空间对所有账号可读
	var base model.GrantMode
	if e.GetRootType() == model.RootCommon {
		base = model.GrantRead
	}

	ids := []string{e.GetID()}

	if e.GetParentID() != "" {
		chain, err := g.tree.ParentChain(ctx, e.GetParentID())
		if err != nil {
			return 0, err
		}

		for i := range chain {
			ids = append(ids, chain[i].ID)
		}
	}

	var rows []model.AccessGrant
	if err := g.dbClient.GetDB().WithContext(ctx).
		Where("subject = ? AND entry_id IN ?", subject, ids).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	mode := base
	for i := range rows {
		if rows[i].Mode > mode {
			mode = rows[i].Mode
		}
	}

	return mode, nil
}

func (g *GrantFilter) hasMode(ctx context.Context, p Principal, e model.Entry, want model.GrantMode) (bool, error) {
	if p.Admin {
		return true, nil
	}

	// 项目空间以成员关系为准
	if folder, ok := e.(*model.Folder); ok && folder.RootType == model.RootProject && folder.ProjectID != "" {
		team, err := g.ProjectTeam(ctx, folder.ProjectID)
		if err != nil {
			return false, err
		}

		for _, m := range team {
			if m == p.ID {
				return true, nil
			}
		}

		return false, nil
	}

	mode, err := g.effectiveMode(ctx, p.ID, e)
	if err != nil {
		return false, err
	}

	return mode >= want, nil
}

// CanRead 主体是否可读条目.
func (g *GrantFilter) CanRead(ctx context.Context, p Principal, e model.Entry) (bool, error) {
	return g.hasMode(ctx, p, e, model.GrantRead)
}

// CanEdit 主体是否可编辑条目.
func (g *GrantFilter) CanEdit(ctx context.Context, p Principal, e model.Entry) (bool, error) {
	return g.hasMode(ctx, p, e, model.GrantEdit)
}

// CanDelete 主体是否可删除条目.
func (g *GrantFilter) CanDelete(ctx context.Context, p Principal, e model.Entry) (bool, error) {
	return g.hasMode(ctx, p, e, model.GrantFull)
}

// FilterReadable 返回 entries 中 p 可读的子集，保持原顺序.
// 损坏条目直接滤除（跳过，不报错）.
func (g *GrantFilter) FilterReadable(ctx context.Context, p Principal, entries []model.Entry) ([]model.Entry, error) {
	out := make([]model.Entry, 0, len(entries))

	for _, e := range entries {
		if e.BrokenError() != "" {
			continue
		}

		ok, err := g.CanRead(ctx, p, e)
		if err != nil {
			return nil, err
		}

		if ok {
			out = append(out, e)
		}
	}

	return out, nil
}

// WhoCanRead 返回当前可读 e 的主体 id 集合：创建者 + 条目与祖先链上的被授权者.
func (g *GrantFilter) WhoCanRead(ctx context.Context, e model.Entry) ([]string, error) {
	ids := []string{e.GetID()}

	if e.GetParentID() != "" {
		chain, err := g.tree.ParentChain(ctx, e.GetParentID())
		if err != nil {
			return nil, err
		}

		for i := range chain {
			ids = append(ids, chain[i].ID)
		}
	}

	var rows []model.AccessGrant
	if err := g.dbClient.GetDB().WithContext(ctx).
		Where("entry_id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	readers := make([]string, 0, len(rows)+1)

	add := func(id string) {
		if id == "" {
			return
		}

		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			readers = append(readers, id)
		}
	}

	add(e.GetCreatorID())

	for i := range rows {
		add(rows[i].Subject)
	}

	return readers, nil
}

// ProjectTeam 项目成员列表.
func (g *GrantFilter) ProjectTeam(ctx context.Context, projectID string) ([]string, error) {
	var rows []model.ProjectMember
	if err := g.dbClient.GetDB().WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	team := make([]string, 0, len(rows))
	for i := range rows {
		team = append(team, rows[i].Subject)
	}

	return team, nil
}

// IsGuest 主体是否为访客账号. 未登记的账号按正常账号处理.
func (g *GrantFilter) IsGuest(ctx context.Context, subject string) (bool, error) {
	var acc model.Account

	err := g.dbClient.GetDB().WithContext(ctx).
		Where("id = ?", subject).First(&acc).Error
	if err != nil {
		return false, nil //nolint:nilerr // 账号缺失不视为错误
	}

	return acc.Guest, nil
}
