package fileops

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/sync/errgroup"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/blob"
	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	nlog "github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/queue"
)

// archiveEntry 压缩包内的一个条目. file 为 nil 表示空文件夹占位
// （path 以 / 结尾）.
type archiveEntry struct {
	path      string
	file      *model.File
	targetExt string
}

// downloadOp 打包下载：把文件/文件夹选集展平为压缩包条目，消解路径
// 冲突后逐条流式写入 zip，整包写入每用户的临时产物路径. 条目级失败
// （缺失内容、超限、转换失败）记录后跳过，不中断其余条目.
type downloadOp struct {
	engine    *Engine
	principal security.Principal
	folderIDs []string
	fileIDs   []string
	rename    map[string]string
}

func (op *downloadOp) Total(ctx context.Context) (int, error) {
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

func (op *downloadOp) Do(ctx context.Context, jobID string) error {
	entries, err := op.resolve(ctx)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return fmt.Errorf("fileops: nothing readable to archive")
	}

	cfg := configs.GetConfig().Operations

	paths := make([]string, len(entries))
	for i := range entries {
		paths[i] = shortenPath(entries[i].path, cfg.MaxPathLength, cfg.LongPathSegment)
	}

	for i, p := range uniquePaths(paths) {
		entries[i].path = p
	}

	tempPath := blob.TempArchivePath(op.principal.ID)

	// 压缩流经管道直写临时桶，整包不落内存
	pr, pw := io.Pipe()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := op.engine.blobs.SaveTemp(gctx, tempPath, pr, -1); err != nil {
			pr.CloseWithError(err)
			return err
		}

		return nil
	})

	g.Go(func() error {
		zw := zip.NewWriter(pw)
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, flate.DefaultCompression)
		})

		for _, ent := range entries {
			if err := checkCanceled(gctx); err != nil {
				pw.CloseWithError(err)
				return err
			}

			if err := op.writeOne(gctx, jobID, zw, ent); err != nil {
				pw.CloseWithError(err)
				return err
			}

			op.engine.step(jobID, 1)
		}

		if err := zw.Close(); err != nil {
			pw.CloseWithError(err)
			return err
		}

		return pw.Close()
	})

	if err := g.Wait(); err != nil {
		// 取消或失败时丢弃半成品压缩包
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if delErr := op.engine.blobs.DeleteTemp(cleanupCtx, tempPath); delErr != nil {
			nlog.Logger().Debug().Err(delErr).Str("path", tempPath).Msg("discard partial archive failed")
		}

		return err
	}

	op.engine.setResult(jobID, tempPath)

	evCfg := configs.GetConfig().Events
	if op.engine.pub != nil && evCfg.Enabled && evCfg.Operation.ArchiveReady {
		payload := queue.ArchivePayload{
			Owner:    op.principal.ID,
			TempPath: tempPath,
			Entries:  len(entries),
		}
		if err := queue.PublishArchiveReady(op.engine.pub, payload, queue.WithProducer("docvault")); err != nil {
			nlog.Logger().Debug().Err(err).Str("job", jobID).Msg("publish archive ready event failed")
		}
	}

	return nil
}

// resolve 展平选集：直接文件先按提交顺序解析，再对每个文件夹做
// 深度优先遍历. 可读过滤后的条目同时触发"已读"副作用.
func (op *downloadOp) resolve(ctx context.Context) ([]archiveEntry, error) {
	var out []archiveEntry

	if len(op.fileIDs) > 0 {
		candidates := make([]model.Entry, 0, len(op.fileIDs))

		for _, id := range op.fileIDs {
			f, err := op.engine.tree.File(ctx, id)
			if err != nil {
				if errors.Is(err, tree.ErrEntryNotFound) {
					return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
				}

				return nil, err
			}

			candidates = append(candidates, f)
		}

		readable, err := op.engine.filter.FilterReadable(ctx, op.principal, candidates)
		if err != nil {
			return nil, err
		}

		for _, e := range readable {
			f, ok := e.(*model.File)
			if !ok || f.BrokenError() != "" {
				continue
			}

			op.markRead(ctx, f)

			ext := op.rename[f.ID]
			out = append(out, archiveEntry{path: archiveTitle(f, ext), file: f, targetExt: ext})
		}
	}

	for _, id := range op.folderIDs {
		if err := checkCanceled(ctx); err != nil {
			return nil, err
		}

		folder, err := op.engine.tree.Folder(ctx, id)
		if err != nil {
			if errors.Is(err, tree.ErrEntryNotFound) {
				return nil, fmt.Errorf("%w: folder %s", ErrNotFound, id)
			}

			return nil, err
		}

		ok, err := op.engine.filter.CanRead(ctx, op.principal, folder)
		if err != nil {
			return nil, err
		}

		if !ok || folder.BrokenError() != "" {
			continue
		}

		if err := op.walk(ctx, folder, folder.Title, &out); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// walk 深度优先展开文件夹. 过滤后无可达子项的文件夹贡献一个
// 空目录占位条目，保留空文件夹结构.
func (op *downloadOp) walk(ctx context.Context, folder *model.Folder, prefix string, acc *[]archiveEntry) error {
	if err := checkCanceled(ctx); err != nil {
		return err
	}

	op.markRead(ctx, folder)

	reachable := 0

	files, err := op.engine.tree.ChildFiles(ctx, folder.ID)
	if err != nil {
		return err
	}

	candidates := make([]model.Entry, 0, len(files))
	for i := range files {
		candidates = append(candidates, &files[i])
	}

	readable, err := op.engine.filter.FilterReadable(ctx, op.principal, candidates)
	if err != nil {
		return err
	}

	for _, e := range readable {
		f, ok := e.(*model.File)
		if !ok || f.BrokenError() != "" {
			continue
		}

		op.markRead(ctx, f)

		ext := op.rename[f.ID]
		*acc = append(*acc, archiveEntry{path: prefix + "/" + archiveTitle(f, ext), file: f, targetExt: ext})
		reachable++
	}

	subs, err := op.engine.tree.ChildFolders(ctx, folder.ID)
	if err != nil {
		return err
	}

	subCandidates := make([]model.Entry, 0, len(subs))
	for i := range subs {
		subCandidates = append(subCandidates, &subs[i])
	}

	readableSubs, err := op.engine.filter.FilterReadable(ctx, op.principal, subCandidates)
	if err != nil {
		return err
	}

	for _, e := range readableSubs {
		sf, ok := e.(*model.Folder)
		if !ok || sf.BrokenError() != "" {
			continue
		}

		if err := op.walk(ctx, sf, prefix+"/"+sf.Title, acc); err != nil {
			return err
		}

		reachable++
	}

	if reachable == 0 {
		*acc = append(*acc, archiveEntry{path: prefix + "/"})
	}

	return nil
}

// writeOne 写入单个条目. 返回非 nil 仅当压缩流本身不可用（任务级）；
// 条目级失败记录后返回 nil.
func (op *downloadOp) writeOne(ctx context.Context, jobID string, zw *zip.Writer, ent archiveEntry) error {
	if ent.file == nil {
		// 空目录占位：只有头，无内容
		_, err := zw.CreateHeader(&zip.FileHeader{Name: ent.path, Method: zip.Store})
		if err != nil {
			return fmt.Errorf("create dir entry %s: %w", ent.path, err)
		}

		return nil
	}

	f := ent.file
	cfg := configs.GetConfig().Operations

	if cfg.MaxArchiveEntryBytes > 0 && f.ContentLength > cfg.MaxArchiveEntryBytes {
		op.engine.itemErr(jobID, model.OperationDownload,
			fmt.Errorf("%w: %s (%d bytes)", ErrTooLarge, f.Title, f.ContentLength))

		return nil
	}

	var (
		rc  io.ReadCloser
		err error
	)

	if op.engine.conv.NeedsConvert(f, ent.targetExt) {
		rc, err = op.engine.conv.Convert(ctx, f, ent.targetExt)
	} else {
		rc, err = op.engine.blobs.OpenRead(ctx, f.ContentPath)
	}

	if err != nil {
		op.engine.itemErr(jobID, model.OperationDownload, fmt.Errorf("%s: %v", f.Title, err))

		return nil
	}

	defer func() {
		if closeErr := rc.Close(); closeErr != nil {
			nlog.Logger().Debug().Err(closeErr).Str("file", f.ID).Msg("close content stream failed")
		}
	}()

	hdr := &zip.FileHeader{Name: ent.path, Method: zip.Deflate, Modified: f.UpdatedAt}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", ent.path, err)
	}

	if n, err := io.Copy(w, rc); err != nil {
		// 源流中断：条目已写入的字节留在压缩包里，错误文本必须
		// 点明截断，让取回方知道该条目不完整
		op.engine.itemErr(jobID, model.OperationDownload,
			fmt.Errorf("%s: truncated after %d bytes: %v", f.Title, n, err))
	}

	return nil
}

func (op *downloadOp) markRead(ctx context.Context, e model.Entry) {
	if op.engine.marks == nil {
		return
	}

	if err := op.engine.marks.RemoveNew(ctx, e, op.principal.ID); err != nil {
		nlog.Logger().Debug().Err(err).Str("entry", e.GetID()).Msg("clear new tag failed")
	}
}

// archiveTitle 压缩包内文件名：请求了目标扩展名且与当前不同时替换扩展名.
func archiveTitle(f *model.File, targetExt string) string {
	if targetExt == "" || strings.EqualFold(f.Extension(), targetExt) {
		return f.Title
	}

	stem, _ := splitExt(f.Title)

	return stem + targetExt
}
