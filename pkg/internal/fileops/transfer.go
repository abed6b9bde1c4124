package fileops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	nlog "github.com/yeisme/docvault/pkg/log"
)

// transferOp 批量移动/复制. 目标文件夹的编辑权是任务级前置条件，
// 逐条目的读/删权限检查失败只跳过该条目. 同名冲突按策略处理：
// 跳过、覆盖或改名共存.
type transferOp struct {
	engine    *Engine
	principal security.Principal
	folderIDs []string
	fileIDs   []string
	targetID  string
	copies    bool
	resolve   ConflictResolution
}

func (op *transferOp) kind() model.OperationKind {
	if op.copies {
		return model.OperationCopy
	}

	return model.OperationMove
}

func (op *transferOp) Total(ctx context.Context) (int, error) {
	total := len(op.fileIDs)

	for _, id := range op.folderIDs {
		n, err := op.engine.tree.ItemCount(ctx, id)
		if err != nil {
			if errors.Is(err, tree.ErrEntryNotFound) {
				return 0, fmt.Errorf("%w: folder %s", ErrNotFound, id)
			}

			return 0, err
		}

		total += 1 + n
	}

	return total, nil
}

func (op *transferOp) Do(ctx context.Context, jobID string) error {
	target, err := op.engine.tree.Folder(ctx, op.targetID)
	if err != nil {
		if errors.Is(err, tree.ErrEntryNotFound) {
			return fmt.Errorf("%w: target folder %s", ErrNotFound, op.targetID)
		}

		return err
	}

	ok, err := op.engine.filter.CanEdit(ctx, op.principal, target)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: target folder %s", ErrForbidden, op.targetID)
	}

	for _, id := range op.fileIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		op.transferFile(ctx, jobID, id, target)
		op.engine.step(jobID, 1)
	}

	for _, id := range op.folderIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		if err := op.transferFolder(ctx, jobID, id, target); err != nil {
			return err
		}
	}

	return nil
}

// transferFile 单文件移动/复制. 失败均为条目级.
func (op *transferOp) transferFile(ctx context.Context, jobID, fileID string, target *model.Folder) {
	f, err := op.engine.tree.File(ctx, fileID)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("file %s: %v", fileID, err))
		return
	}

	if f.BrokenError() != "" {
		return
	}

	allowed, err := op.allowed(ctx, f)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("file %s: %v", fileID, err))
		return
	}

	if !allowed {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("%w: %s", ErrForbidden, f.Title))
		return
	}

	title, proceed, err := op.resolveFileConflict(ctx, jobID, f.Title, target)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("file %s: %v", fileID, err))
		return
	}

	if !proceed {
		return
	}

	if op.copies {
		// 复制共享内容对象：新行引用同一 ContentPath
		cp := &model.File{
			ID:            uuid.NewString(),
			Version:       1,
			Title:         title,
			ParentID:      target.ID,
			RootID:        target.RootID,
			RootType:      target.RootType,
			CreatorID:     op.principal.ID,
			VersionGroup:  1,
			Current:       true,
			ContentLength: f.ContentLength,
			ContentPath:   f.ContentPath,
			Forcesave:     model.ForcesaveNone,
		}
		if err := op.engine.tree.SaveFile(ctx, cp); err != nil {
			op.engine.itemErr(jobID, op.kind(), fmt.Errorf("copy %s: %v", f.Title, err))
		}

		return
	}

	if err := op.engine.tree.SetFileParent(ctx, f.ID, target.ID, target.RootID, target.RootType); err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("move %s: %v", f.Title, err))
		return
	}

	if title != f.Title {
		if err := op.engine.tree.SetFileTitle(ctx, f.ID, title); err != nil {
			op.engine.itemErr(jobID, op.kind(), fmt.Errorf("rename %s: %v", f.Title, err))
		}
	}

	// 位置变更后旧位置的"新"标记作废
	op.clearMarks(ctx, f)
}

// transferFolder 单文件夹移动/复制. 移动是一次父指针更新；
// 复制是递归建行. 返回非 nil 仅当取消.
func (op *transferOp) transferFolder(ctx context.Context, jobID, folderID string, target *model.Folder) error {
	folder, err := op.engine.tree.Folder(ctx, folderID)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("folder %s: %v", folderID, err))
		op.engine.step(jobID, 1)

		return nil
	}

	if folder.BrokenError() != "" {
		op.engine.step(jobID, 1)
		return nil
	}

	allowed, err := op.allowed(ctx, folder)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("folder %s: %v", folderID, err))
		op.engine.step(jobID, 1)

		return nil
	}

	if !allowed {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("%w: %s", ErrForbidden, folder.Title))
		op.engine.step(jobID, 1)

		return nil
	}

	// 禁止把文件夹移入自身或其后代
	chain, err := op.engine.tree.ParentChain(ctx, target.ID)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("folder %s: %v", folderID, err))
		op.engine.step(jobID, 1)

		return nil
	}

	for i := range chain {
		if chain[i].ID == folder.ID {
			op.engine.itemErr(jobID, op.kind(),
				fmt.Errorf("folder %s: cannot move into its own subtree", folder.Title))
			op.engine.step(jobID, 1)

			return nil
		}
	}

	title, proceed, err := op.resolveFolderConflict(ctx, folder.Title, target)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("folder %s: %v", folderID, err))
		op.engine.step(jobID, 1)

		return nil
	}

	if !proceed {
		op.engine.step(jobID, 1)
		return nil
	}

	if op.copies {
		return op.copyFolder(ctx, jobID, folder, target, title)
	}

	if err := op.engine.tree.SetFolderParent(ctx, folder.ID, target.ID, target.RootID, target.RootType); err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("move %s: %v", folder.Title, err))
		op.engine.step(jobID, 1)

		return nil
	}

	if title != folder.Title {
		if err := op.engine.tree.SetFolderTitle(ctx, folder.ID, title); err != nil {
			op.engine.itemErr(jobID, op.kind(), fmt.Errorf("rename %s: %v", folder.Title, err))
		}
	}

	op.clearMarks(ctx, folder)
	op.engine.step(jobID, 1)

	return nil
}

// copyFolder 递归复制子树. 每层检查取消；子项失败为条目级.
func (op *transferOp) copyFolder(ctx context.Context, jobID string, src, target *model.Folder, title string) error {
	if err := checkCanceled(ctx); err != nil {
		return err
	}

	dst := &model.Folder{
		ID:        uuid.NewString(),
		Title:     title,
		ParentID:  target.ID,
		RootID:    target.RootID,
		RootType:  target.RootType,
		CreatorID: op.principal.ID,
	}
	if err := op.engine.tree.SaveFolder(ctx, dst); err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("copy folder %s: %v", src.Title, err))
		op.engine.step(jobID, 1)

		return nil
	}

	op.engine.step(jobID, 1)

	files, err := op.engine.tree.ChildFiles(ctx, src.ID)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("list %s: %v", src.Title, err))
		return nil
	}

	for i := range files {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		f := &files[i]
		if f.BrokenError() != "" {
			continue
		}

		cp := &model.File{
			ID:            uuid.NewString(),
			Version:       1,
			Title:         f.Title,
			ParentID:      dst.ID,
			RootID:        dst.RootID,
			RootType:      dst.RootType,
			CreatorID:     op.principal.ID,
			VersionGroup:  1,
			Current:       true,
			ContentLength: f.ContentLength,
			ContentPath:   f.ContentPath,
			Forcesave:     model.ForcesaveNone,
		}
		if err := op.engine.tree.SaveFile(ctx, cp); err != nil {
			op.engine.itemErr(jobID, op.kind(), fmt.Errorf("copy %s: %v", f.Title, err))
		}

		op.engine.step(jobID, 1)
	}

	subs, err := op.engine.tree.ChildFolders(ctx, src.ID)
	if err != nil {
		op.engine.itemErr(jobID, op.kind(), fmt.Errorf("list %s: %v", src.Title, err))
		return nil
	}

	for i := range subs {
		if err := op.copyFolder(ctx, jobID, &subs[i], dst, subs[i].Title); err != nil {
			return err
		}
	}

	return nil
}

// allowed 复制只需读权，移动还需删除权（从源位置拿走）.
func (op *transferOp) allowed(ctx context.Context, e model.Entry) (bool, error) {
	if op.copies {
		return op.engine.filter.CanRead(ctx, op.principal, e)
	}

	return op.engine.filter.CanDelete(ctx, op.principal, e)
}

// resolveFileConflict 目标中已有同名文件时按策略处理.
// 返回最终标题与是否继续.
func (op *transferOp) resolveFileConflict(ctx context.Context, jobID, title string, target *model.Folder) (string, bool, error) {
	siblings, err := op.engine.tree.ChildFiles(ctx, target.ID)
	if err != nil {
		return "", false, err
	}

	existing := ""

	taken := make(map[string]struct{}, len(siblings))
	for i := range siblings {
		taken[siblings[i].Title] = struct{}{}

		if siblings[i].Title == title {
			existing = siblings[i].ID
		}
	}

	if existing == "" {
		return title, true, nil
	}

	switch op.resolve {
	case ConflictOverwrite:
		if err := op.engine.tree.DeleteFile(ctx, existing); err != nil {
			return "", false, fmt.Errorf("overwrite %s: %w", title, err)
		}

		return title, true, nil
	case ConflictDuplicate:
		return nextFreeTitle(title, taken), true, nil
	default:
		return "", false, nil // skip
	}
}

// resolveFolderConflict 同 resolveFileConflict，但文件夹覆盖语义复杂
// （需递归合并），按改名共存处理 overwrite 之外的非 skip 策略.
func (op *transferOp) resolveFolderConflict(ctx context.Context, title string, target *model.Folder) (string, bool, error) {
	siblings, err := op.engine.tree.ChildFolders(ctx, target.ID)
	if err != nil {
		return "", false, err
	}

	conflict := false

	taken := make(map[string]struct{}, len(siblings))
	for i := range siblings {
		taken[siblings[i].Title] = struct{}{}

		if siblings[i].Title == title {
			conflict = true
		}
	}

	if !conflict {
		return title, true, nil
	}

	if op.resolve == ConflictSkip {
		return "", false, nil
	}

	return nextFreeTitle(title, taken), true, nil
}

// nextFreeTitle 取首个未被占用的 "title (n)" 变体.
func nextFreeTitle(title string, taken map[string]struct{}) string {
	stem, ext := splitExt(title)

	for n := 1; ; n++ {
		cand := fmt.Sprintf("%s (%d)%s", stem, n, ext)
		if _, ok := taken[cand]; !ok {
			return cand
		}
	}
}

func (op *transferOp) clearMarks(ctx context.Context, e model.Entry) {
	if op.engine.marks == nil {
		return
	}

	if err := op.engine.marks.RemoveNewForAll(ctx, e); err != nil {
		nlog.Logger().Debug().Err(err).Str("entry", e.GetID()).Msg("clear new tags failed")
	}
}
