package fileops

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	nlog "github.com/yeisme/docvault/pkg/log"
)

// deleteOp 批量删除. 默认移入回收站（根归属改写），permanent 时
// 后序遍历物理删除行与内容对象. 外部连接器承载的条目不在本地删除，
// 逐条记录后跳过.
type deleteOp struct {
	engine    *Engine
	principal security.Principal
	folderIDs []string
	fileIDs   []string
	permanent bool
}

func (op *deleteOp) Total(ctx context.Context) (int, error) {
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

func (op *deleteOp) Do(ctx context.Context, jobID string) error {
	for _, id := range op.fileIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		f, err := op.engine.tree.File(ctx, id)
		if err != nil {
			op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("file %s: %v", id, err))
			op.engine.step(jobID, 1)

			continue
		}

		op.deleteFile(ctx, jobID, f)
		op.engine.step(jobID, 1)
	}

	for _, id := range op.folderIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		folder, err := op.engine.tree.Folder(ctx, id)
		if err != nil {
			op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("folder %s: %v", id, err))
			op.engine.step(jobID, 1)

			continue
		}

		if op.permanent {
			if err := op.deleteFolderTree(ctx, jobID, folder); err != nil {
				return err
			}

			continue
		}

		op.trashEntry(ctx, jobID, folder)
		op.engine.step(jobID, 1)
	}

	return nil
}

func (op *deleteOp) deleteFile(ctx context.Context, jobID string, f *model.File) {
	ok, err := op.engine.filter.CanDelete(ctx, op.principal, f)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("file %s: %v", f.ID, err))
		return
	}

	if !ok {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("%w: %s", ErrForbidden, f.Title))
		return
	}

	if f.IsProvider() {
		op.engine.itemErr(jobID, model.OperationDelete,
			fmt.Errorf("%s: provider-backed entries are managed externally", f.Title))

		return
	}

	if !op.permanent {
		op.trashEntry(ctx, jobID, f)
		return
	}

	op.clearMarks(ctx, f)

	// 全部版本行的内容对象一并删除
	versions, err := op.engine.tree.FileVersions(ctx, f.ID)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("delete %s: %v", f.Title, err))
		return
	}

	if err := op.engine.tree.DeleteFile(ctx, f.ID); err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("delete %s: %v", f.Title, err))
		return
	}

	for i := range versions {
		if versions[i].ContentPath == "" {
			continue
		}

		if err := op.engine.blobs.Delete(ctx, versions[i].ContentPath); err != nil {
			nlog.Logger().Warn().Err(err).Str("path", versions[i].ContentPath).Msg("delete content object failed")
		}
	}
}

// deleteFolderTree 后序遍历物理删除子树. 返回非 nil 仅当取消.
func (op *deleteOp) deleteFolderTree(ctx context.Context, jobID string, folder *model.Folder) error {
	if err := checkCanceled(ctx); err != nil {
		return err
	}

	ok, err := op.engine.filter.CanDelete(ctx, op.principal, folder)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("folder %s: %v", folder.ID, err))
		op.engine.step(jobID, 1)

		return nil
	}

	if !ok {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("%w: %s", ErrForbidden, folder.Title))
		op.engine.step(jobID, 1)

		return nil
	}

	if folder.IsProvider() {
		op.engine.itemErr(jobID, model.OperationDelete,
			fmt.Errorf("%s: provider-backed entries are managed externally", folder.Title))
		op.engine.step(jobID, 1)

		return nil
	}

	files, err := op.engine.tree.ChildFiles(ctx, folder.ID)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("list %s: %v", folder.Title, err))
		op.engine.step(jobID, 1)

		return nil
	}

	for i := range files {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		op.deleteFile(ctx, jobID, &files[i])
		op.engine.step(jobID, 1)
	}

	subs, err := op.engine.tree.ChildFolders(ctx, folder.ID)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("list %s: %v", folder.Title, err))
		op.engine.step(jobID, 1)

		return nil
	}

	for i := range subs {
		if err := op.deleteFolderTree(ctx, jobID, &subs[i]); err != nil {
			return err
		}
	}

	op.clearMarks(ctx, folder)

	if err := op.engine.tree.DeleteFolder(ctx, folder.ID); err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("delete %s: %v", folder.Title, err))
	}

	op.engine.step(jobID, 1)

	return nil
}

// trashEntry 移入回收站：父指针断开，根归属改写为该主体的回收站树.
func (op *deleteOp) trashEntry(ctx context.Context, jobID string, e model.Entry) {
	ok, err := op.engine.filter.CanDelete(ctx, op.principal, e)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("trash %s: %v", e.GetTitle(), err))
		return
	}

	if !ok {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("%w: %s", ErrForbidden, e.GetTitle()))
		return
	}

	trashRoot := "trash:" + op.principal.ID

	switch e.GetEntryType() {
	case model.EntryFile:
		err = op.engine.tree.SetFileParent(ctx, e.GetID(), "", trashRoot, model.RootTrash)
	case model.EntryFolder:
		err = op.engine.tree.SetFolderParent(ctx, e.GetID(), "", trashRoot, model.RootTrash)
	}

	if err != nil {
		op.engine.itemErr(jobID, model.OperationDelete, fmt.Errorf("trash %s: %v", e.GetTitle(), err))
		return
	}

	op.clearMarks(ctx, e)
}

func (op *deleteOp) clearMarks(ctx context.Context, e model.Entry) {
	if op.engine.marks == nil {
		return
	}

	if err := op.engine.marks.RemoveNewForAll(ctx, e); err != nil {
		nlog.Logger().Debug().Err(err).Str("entry", e.GetID()).Msg("clear new tags failed")
	}
}
