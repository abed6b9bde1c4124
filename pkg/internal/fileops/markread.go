package fileops

import (
	"context"
	"fmt"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
)

// markReadOp 批量标记已读：逐条目清除提交主体的"新"标记.
// 文件夹一步清除其整棵子树的计数（标记引擎按文件夹自身存储的
// 计数做祖先扣减），因此文件夹只计 1 步.
type markReadOp struct {
	engine    *Engine
	principal security.Principal
	folderIDs []string
	fileIDs   []string
}

func (op *markReadOp) Total(ctx context.Context) (int, error) {
	return len(op.fileIDs) + len(op.folderIDs), nil
}

func (op *markReadOp) Do(ctx context.Context, jobID string) error {
	if op.engine.marks == nil {
		return fmt.Errorf("fileops: marker engine unavailable")
	}

	for _, id := range op.fileIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		f, err := op.engine.tree.File(ctx, id)
		if err != nil {
			op.engine.itemErr(jobID, model.OperationMarkRead, fmt.Errorf("file %s: %v", id, err))
			op.engine.step(jobID, 1)

			continue
		}

		op.removeNew(ctx, jobID, f)
		op.engine.step(jobID, 1)
	}

	for _, id := range op.folderIDs {
		if err := checkCanceled(ctx); err != nil {
			return err
		}

		folder, err := op.engine.tree.Folder(ctx, id)
		if err != nil {
			op.engine.itemErr(jobID, model.OperationMarkRead, fmt.Errorf("folder %s: %v", id, err))
			op.engine.step(jobID, 1)

			continue
		}

		op.removeNew(ctx, jobID, folder)
		op.engine.step(jobID, 1)
	}

	return nil
}

func (op *markReadOp) removeNew(ctx context.Context, jobID string, e model.Entry) {
	ok, err := op.engine.filter.CanRead(ctx, op.principal, e)
	if err != nil {
		op.engine.itemErr(jobID, model.OperationMarkRead, fmt.Errorf("%s: %v", e.GetTitle(), err))
		return
	}

	if !ok {
		op.engine.itemErr(jobID, model.OperationMarkRead, fmt.Errorf("%w: %s", ErrForbidden, e.GetTitle()))
		return
	}

	if err := op.engine.marks.RemoveNew(ctx, e, op.principal.ID); err != nil {
		op.engine.itemErr(jobID, model.OperationMarkRead, fmt.Errorf("%s: %v", e.GetTitle(), err))
	}
}
