package fileops

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "docvault-fileops-test")
	if err != nil {
		panic(err)
	}

	defer func() { _ = os.RemoveAll(dir) }()

	// 默认配置即可，无配置文件
	if err := configs.InitConfig(dir); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

// fakeTree 进程内目录树，子项顺序即插入顺序.
type fakeTree struct {
	mu      sync.Mutex
	folders []*model.Folder
	files   []*model.File
}

func (ft *fakeTree) addFolder(f *model.Folder) *model.Folder {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.folders = append(ft.folders, f)

	return f
}

func (ft *fakeTree) addFile(f *model.File) *model.File {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if f.Version == 0 {
		f.Version = 1
	}

	f.Current = true
	ft.files = append(ft.files, f)

	return f
}

func (ft *fakeTree) Folder(ctx context.Context, id string) (*model.Folder, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.folders {
		if f.ID == id {
			cp := *f
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("%w: folder %s", tree.ErrEntryNotFound, id)
}

func (ft *fakeTree) File(ctx context.Context, id string) (*model.File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.files {
		if f.ID == id && f.Current {
			cp := *f
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("%w: file %s", tree.ErrEntryNotFound, id)
}

func (ft *fakeTree) FileVersions(ctx context.Context, id string) ([]model.File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.File

	for _, f := range ft.files {
		if f.ID == id {
			out = append(out, *f)
		}
	}

	return out, nil
}

func (ft *fakeTree) ChildFolders(ctx context.Context, folderID string) ([]model.Folder, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.Folder

	for _, f := range ft.folders {
		if f.ParentID == folderID {
			out = append(out, *f)
		}
	}

	return out, nil
}

func (ft *fakeTree) ChildFiles(ctx context.Context, folderID string) ([]model.File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.File

	for _, f := range ft.files {
		if f.ParentID == folderID && f.Current {
			out = append(out, *f)
		}
	}

	return out, nil
}

func (ft *fakeTree) ParentChain(ctx context.Context, folderID string) ([]model.Folder, error) {
	var out []model.Folder

	id := folderID
	for id != "" {
		f, err := ft.Folder(ctx, id)
		if err != nil {
			return nil, err
		}

		out = append(out, *f)
		id = f.ParentID
	}

	return out, nil
}

func (ft *fakeTree) ItemCount(ctx context.Context, folderID string) (int, error) {
	if _, err := ft.Folder(ctx, folderID); err != nil {
		return 0, err
	}

	files, _ := ft.ChildFiles(ctx, folderID)
	n := len(files)

	subs, _ := ft.ChildFolders(ctx, folderID)
	for i := range subs {
		c, err := ft.ItemCount(ctx, subs[i].ID)
		if err != nil {
			return 0, err
		}

		n += 1 + c
	}

	return n, nil
}

func (ft *fakeTree) SaveFile(ctx context.Context, f *model.File) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, old := range ft.files {
		if old.ID == f.ID {
			old.Current = false
		}
	}

	cp := *f
	cp.Current = true
	ft.files = append(ft.files, &cp)

	return nil
}

func (ft *fakeTree) SaveFolder(ctx context.Context, f *model.Folder) error {
	cp := *f
	ft.addFolder(&cp)

	return nil
}

func (ft *fakeTree) SetFileParent(ctx context.Context, fileID, parentID, rootID string, rootType model.RootType) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.files {
		if f.ID == fileID {
			f.ParentID = parentID
			f.RootID = rootID
			f.RootType = rootType
		}
	}

	return nil
}

func (ft *fakeTree) SetFolderParent(ctx context.Context, folderID, parentID, rootID string, rootType model.RootType) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.folders {
		if f.ID == folderID {
			f.ParentID = parentID
			f.RootID = rootID
			f.RootType = rootType
		}
	}

	return nil
}

func (ft *fakeTree) SetFileTitle(ctx context.Context, fileID, title string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.files {
		if f.ID == fileID {
			f.Title = title
		}
	}

	return nil
}

func (ft *fakeTree) SetFolderTitle(ctx context.Context, folderID, title string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, f := range ft.folders {
		if f.ID == folderID {
			f.Title = title
		}
	}

	return nil
}

func (ft *fakeTree) DeleteFile(ctx context.Context, fileID string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	kept := ft.files[:0]

	for _, f := range ft.files {
		if f.ID != fileID {
			kept = append(kept, f)
		}
	}

	ft.files = kept

	return nil
}

func (ft *fakeTree) DeleteFolder(ctx context.Context, folderID string) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	kept := ft.folders[:0]

	for _, f := range ft.folders {
		if f.ID != folderID {
			kept = append(kept, f)
		}
	}

	ft.folders = kept

	return nil
}

func (ft *fakeTree) Tag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) (*model.Tag, error) {
	return nil, nil
}

func (ft *fakeTree) EntryTags(ctx context.Context, entryID string, entryType model.EntryType, tagType model.TagType) ([]model.Tag, error) {
	return nil, nil
}

func (ft *fakeTree) OwnerTags(ctx context.Context, owner string, entryIDs []string, tagType model.TagType) ([]model.Tag, error) {
	return nil, nil
}

func (ft *fakeTree) SaveTag(ctx context.Context, t *model.Tag) error { return nil }

func (ft *fakeTree) SetTagCount(ctx context.Context, rowID uint, count int) error { return nil }

func (ft *fakeTree) DeleteTag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) error {
	return nil
}

// allowAllFilter 放行全部权限检查.
type allowAllFilter struct{}

func (allowAllFilter) CanRead(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (allowAllFilter) CanEdit(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (allowAllFilter) CanDelete(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (allowAllFilter) FilterReadable(ctx context.Context, p security.Principal, entries []model.Entry) ([]model.Entry, error) {
	return entries, nil
}

func (allowAllFilter) WhoCanRead(ctx context.Context, e model.Entry) ([]string, error) {
	return nil, nil
}

func (allowAllFilter) ProjectTeam(ctx context.Context, projectID string) ([]string, error) {
	return nil, nil
}

func (allowAllFilter) IsGuest(ctx context.Context, subject string) (bool, error) {
	return false, nil
}

// fakeBlob 内存对象存储. onOpen 在每次内容读取前调用，用于在确定的
// 条目边界注入取消；broken 指定路径的读取流在 N 字节后中断.
type fakeBlob struct {
	mu       sync.Mutex
	contents map[string][]byte
	temps    map[string][]byte
	deleted  []string
	broken   map[string]int
	opens    int
	onOpen   func(n int)
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		contents: make(map[string][]byte),
		temps:    make(map[string][]byte),
	}
}

func (b *fakeBlob) put(path string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contents[path] = data
}

func (b *fakeBlob) OpenRead(ctx context.Context, contentPath string) (io.ReadCloser, error) {
	b.mu.Lock()
	b.opens++
	n := b.opens
	hook := b.onOpen
	data, ok := b.contents[contentPath]
	cut, isBroken := b.broken[contentPath]
	b.mu.Unlock()

	if hook != nil {
		hook(n)
	}

	if !ok {
		return nil, fmt.Errorf("no such object: %s", contentPath)
	}

	if isBroken {
		return io.NopCloser(&truncatedReader{data: data[:cut]}), nil
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// truncatedReader 吐完 data 后以错误而非 EOF 结束，模拟源流中断.
type truncatedReader struct {
	data []byte
	off  int
}

func (r *truncatedReader) Read(p []byte) (int, error) {
	if r.off >= len(r.data) {
		return 0, errors.New("connection reset")
	}

	n := copy(p, r.data[r.off:])
	r.off += n

	return n, nil
}

func (b *fakeBlob) Delete(ctx context.Context, contentPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.contents, contentPath)
	b.deleted = append(b.deleted, contentPath)

	return nil
}

func (b *fakeBlob) SaveTemp(ctx context.Context, tempPath string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.temps[tempPath] = data

	return nil
}

func (b *fakeBlob) OpenTemp(ctx context.Context, tempPath string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.temps[tempPath]
	if !ok {
		return nil, fmt.Errorf("no such temp object: %s", tempPath)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBlob) DeleteTemp(ctx context.Context, tempPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.temps, tempPath)

	return nil
}

func (b *fakeBlob) ListTempOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	return nil, nil
}

func (b *fakeBlob) temp(path string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.temps[path]

	return data, ok
}

// fakeMarker 记录清除调用.
type fakeMarker struct {
	mu      sync.Mutex
	removed []string
}

func (m *fakeMarker) RemoveNew(ctx context.Context, e model.Entry, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, owner+":"+e.GetID())

	return nil
}

func (m *fakeMarker) RemoveNewForAll(ctx context.Context, e model.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, "*:"+e.GetID())

	return nil
}

func (m *fakeMarker) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.removed {
		if r == key {
			return true
		}
	}

	return false
}

func newTestEngine(ft *fakeTree, blobs *fakeBlob, marks Marker) *Engine {
	return NewEngine(Options{
		Tree:   ft,
		Filter: allowAllFilter{},
		Blobs:  blobs,
		Marker: marks,
	})
}

func testPrincipal() security.Principal {
	return security.Principal{ID: "alice@example.com", Locale: "en"}
}

func waitFinished(t *testing.T, e *Engine, jobID string) Snapshot {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.Poll(context.Background(), jobID)
		if err != nil {
			t.Fatalf("poll: %v", err)
		}

		if snap.Finished {
			return snap
		}

		time.Sleep(2 * time.Millisecond)
	}

	t.Fatalf("job %s did not finish in time", jobID)

	return Snapshot{}
}

func readArchive(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}

	out := make(map[string]string, len(zr.File))

	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}

		body, err := io.ReadAll(rc)
		_ = rc.Close()

		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}

		out[f.Name] = string(body)
	}

	return out
}

func TestDownloadArchivesFolderTree(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()
	marks := &fakeMarker{}

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser, CreatorID: "alice@example.com"})
	ft.addFolder(&model.Folder{ID: "sub", Title: "reports", ParentID: "root", RootID: "root", RootType: model.RootUser})
	ft.addFolder(&model.Folder{ID: "empty", Title: "empty", ParentID: "root", RootID: "root", RootType: model.RootUser})

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/f1"})
	ft.addFile(&model.File{ID: "f2", Title: "a.txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/f2"})
	ft.addFile(&model.File{ID: "f3", Title: "b.txt", ParentID: "sub", RootID: "root", RootType: model.RootUser, ContentPath: "c/f3"})

	blobs.put("c/f1", []byte("one"))
	blobs.put("c/f2", []byte("two"))
	blobs.put("c/f3", []byte("three"))

	e := newTestEngine(ft, blobs, marks)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDownload,
		FolderIDs: []string{"root"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if snap.Status != StatusQueued && snap.Status != StatusRunning {
		t.Errorf("fresh snapshot status = %s", snap.Status)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	if final.Progress != 100 {
		t.Errorf("progress = %d, want 100", final.Progress)
	}

	if final.Result == "" {
		t.Fatal("completed download has no result")
	}

	data, ok := blobs.temp(final.Result)
	if !ok {
		t.Fatalf("archive %s not stored", final.Result)
	}

	got := readArchive(t, data)

	want := map[string]string{
		"docs/a.txt":         "one",
		"docs/a (1).txt":     "two",
		"docs/reports/b.txt": "three",
		"docs/empty/":        "",
	}
	for name, body := range want {
		if got[name] != body {
			t.Errorf("entry %q = %q, want %q (all: %v)", name, got[name], body, keys(got))
		}
	}

	if len(got) != len(want) {
		t.Errorf("archive has %d entries, want %d: %v", len(got), len(want), keys(got))
	}

	// 下载路径同时触发"已读"副作用
	if !marks.has("alice@example.com:f3") || !marks.has("alice@example.com:root") {
		t.Errorf("expected read markers cleared, got %v", marks.removed)
	}
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}

func TestDownloadItemFailureDoesNotAbort(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser})

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("f%d", i)
		ft.addFile(&model.File{ID: id, Title: id + ".txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/" + id})

		if i != 3 { // f3 的内容对象缺失
			blobs.put("c/"+id, []byte("data"))
		}
	}

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDownload,
		FolderIDs: []string{"root"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", final.Status)
	}

	if final.Error == "" || !strings.Contains(final.Error, "f3.txt") {
		t.Errorf("expected item error mentioning f3.txt, got %q", final.Error)
	}

	data, ok := blobs.temp(final.Result)
	if !ok {
		t.Fatal("archive missing")
	}

	got := readArchive(t, data)
	if len(got) != 4 {
		t.Errorf("archive has %d entries, want 4: %v", len(got), keys(got))
	}
}

func TestDownloadCancelDiscardsArchive(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser})

	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("f%03d", i)
		ft.addFile(&model.File{ID: id, Title: id + ".txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/" + id})
		blobs.put("c/"+id, bytes.Repeat([]byte("x"), 128))
	}

	e := newTestEngine(ft, blobs, nil)

	var (
		ready = make(chan struct{})
		jobID string
	)

	blobs.onOpen = func(n int) {
		if n == 10 {
			<-ready

			if _, err := e.Cancel(context.Background(), jobID); err != nil {
				t.Errorf("cancel: %v", err)
			}
		}
	}

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDownload,
		FolderIDs: []string{"root"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	jobID = snap.ID
	close(ready)

	final := waitFinished(t, e, jobID)

	if final.Status != StatusCanceled {
		t.Fatalf("status = %s, want canceled (error %q)", final.Status, final.Error)
	}

	if final.Result != "" {
		t.Errorf("canceled job kept result %q", final.Result)
	}

	if final.Processed >= final.Total {
		t.Errorf("processed %d of %d, expected early stop", final.Processed, final.Total)
	}

	// 半成品压缩包被丢弃
	if _, ok := blobs.temp("temp/alice@example.com/archive.zip"); ok {
		t.Error("partial archive not discarded")
	}
}

func TestCancelFinishedJobIsNoop(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", RootID: "r", RootType: model.RootUser, ContentPath: "c/f1"})
	blobs.put("c/f1", []byte("one"))

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: model.OperationDownload, FileIDs: []string{"f1"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	got, err := e.Cancel(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("cancel after finish: %v", err)
	}

	if got.Status != final.Status {
		t.Errorf("cancel flipped status %s -> %s", final.Status, got.Status)
	}
}

func TestMoveWithDuplicateConflict(t *testing.T) {
	ft := &fakeTree{}
	marks := &fakeMarker{}

	ft.addFolder(&model.Folder{ID: "src", Title: "src", RootID: "src", RootType: model.RootUser})
	ft.addFolder(&model.Folder{ID: "dst", Title: "dst", RootID: "dst", RootType: model.RootUser})

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", ParentID: "src", RootID: "src", RootType: model.RootUser})
	ft.addFile(&model.File{ID: "f2", Title: "a.txt", ParentID: "dst", RootID: "dst", RootType: model.RootUser})

	e := newTestEngine(ft, newFakeBlob(), marks)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:           model.OperationMove,
		FileIDs:        []string{"f1"},
		TargetFolderID: "dst",
		Resolve:        ConflictDuplicate,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusCompleted || final.Error != "" {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	moved, err := ft.File(context.Background(), "f1")
	if err != nil {
		t.Fatalf("moved file lookup: %v", err)
	}

	if moved.ParentID != "dst" || moved.Title != "a (1).txt" {
		t.Errorf("moved file parent=%s title=%s", moved.ParentID, moved.Title)
	}

	// 位置变更后旧标记作废
	if !marks.has("*:f1") {
		t.Errorf("expected marker cleanup, got %v", marks.removed)
	}
}

func TestMoveFolderIntoOwnSubtreeRejected(t *testing.T) {
	ft := &fakeTree{}

	ft.addFolder(&model.Folder{ID: "top", Title: "top", RootID: "top", RootType: model.RootUser})
	ft.addFolder(&model.Folder{ID: "child", Title: "child", ParentID: "top", RootID: "top", RootType: model.RootUser})

	e := newTestEngine(ft, newFakeBlob(), nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:           model.OperationMove,
		FolderIDs:      []string{"top"},
		TargetFolderID: "child",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if !strings.Contains(final.Error, "subtree") {
		t.Errorf("expected subtree rejection, got error %q", final.Error)
	}

	moved, _ := ft.Folder(context.Background(), "top")
	if moved.ParentID != "" {
		t.Errorf("folder was moved anyway, parent = %s", moved.ParentID)
	}
}

func TestCopyCreatesNewEntries(t *testing.T) {
	ft := &fakeTree{}

	ft.addFolder(&model.Folder{ID: "src", Title: "src", RootID: "src", RootType: model.RootUser})
	ft.addFolder(&model.Folder{ID: "dst", Title: "dst", RootID: "dst", RootType: model.RootUser})
	ft.addFile(&model.File{ID: "f1", Title: "a.txt", ParentID: "src", RootID: "src", RootType: model.RootUser, ContentPath: "c/f1"})

	e := newTestEngine(ft, newFakeBlob(), nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:           model.OperationCopy,
		FileIDs:        []string{"f1"},
		TargetFolderID: "dst",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)
	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	// 原文件不动
	orig, _ := ft.File(context.Background(), "f1")
	if orig.ParentID != "src" {
		t.Errorf("source file moved to %s", orig.ParentID)
	}

	// 副本共享内容对象
	copies, _ := ft.ChildFiles(context.Background(), "dst")
	if len(copies) != 1 {
		t.Fatalf("target has %d files, want 1", len(copies))
	}

	if copies[0].ID == "f1" || copies[0].ContentPath != "c/f1" {
		t.Errorf("copy id=%s contentPath=%s", copies[0].ID, copies[0].ContentPath)
	}
}

func TestDeleteMovesToTrash(t *testing.T) {
	ft := &fakeTree{}
	marks := &fakeMarker{}

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser})
	ft.addFile(&model.File{ID: "f1", Title: "a.txt", ParentID: "root", RootID: "root", RootType: model.RootUser})

	e := newTestEngine(ft, newFakeBlob(), marks)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:    model.OperationDelete,
		FileIDs: []string{"f1"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)
	if final.Status != StatusCompleted || final.Error != "" {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	f, _ := ft.File(context.Background(), "f1")
	if f.RootType != model.RootTrash || f.ParentID != "" {
		t.Errorf("file not trashed: root=%s parent=%s", f.RootType, f.ParentID)
	}

	if f.RootID != "trash:alice@example.com" {
		t.Errorf("trash root = %s", f.RootID)
	}

	if !marks.has("*:f1") {
		t.Errorf("expected marker cleanup, got %v", marks.removed)
	}
}

func TestPermanentDeleteRemovesContent(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", RootID: "r", RootType: model.RootUser, ContentPath: "c/f1"})
	blobs.put("c/f1", []byte("one"))

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDelete,
		FileIDs:   []string{"f1"},
		Permanent: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)
	if final.Status != StatusCompleted || final.Error != "" {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	if _, err := ft.File(context.Background(), "f1"); !errors.Is(err, tree.ErrEntryNotFound) {
		t.Errorf("file row survived: %v", err)
	}

	blobs.mu.Lock()
	deleted := len(blobs.deleted)
	blobs.mu.Unlock()

	if deleted != 1 {
		t.Errorf("content objects deleted = %d, want 1", deleted)
	}
}

func TestProviderEntrySkippedOnDelete(t *testing.T) {
	ft := &fakeTree{}

	ft.addFile(&model.File{ID: "p1", Title: "ext.doc", RootID: "r", RootType: model.RootProvider, Provider: true})

	e := newTestEngine(ft, newFakeBlob(), nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDelete,
		FileIDs:   []string{"p1"},
		Permanent: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s", final.Status)
	}

	if !strings.Contains(final.Error, "managed externally") {
		t.Errorf("expected provider skip error, got %q", final.Error)
	}

	if _, err := ft.File(context.Background(), "p1"); err != nil {
		t.Errorf("provider entry deleted locally: %v", err)
	}
}

func TestMissingTopLevelSourceFailsJob(t *testing.T) {
	ft := &fakeTree{}
	e := newTestEngine(ft, newFakeBlob(), nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDownload,
		FolderIDs: []string{"nope"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusFailed {
		t.Errorf("status = %s, want failed", final.Status)
	}

	if !strings.Contains(final.Error, "nope") {
		t.Errorf("error %q does not name the missing folder", final.Error)
	}
}

func TestSubmitValidation(t *testing.T) {
	e := newTestEngine(&fakeTree{}, newFakeBlob(), nil)

	if _, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: model.OperationDownload}); err == nil {
		t.Error("empty selection accepted")
	}

	if _, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: model.OperationMove, FileIDs: []string{"f"}}); err == nil {
		t.Error("move without target accepted")
	}

	if _, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: "shred", FileIDs: []string{"f"}}); err == nil {
		t.Error("unknown kind accepted")
	}
}

func TestPollUnknownJob(t *testing.T) {
	e := newTestEngine(&fakeTree{}, newFakeBlob(), nil)

	if _, err := e.Poll(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound", err)
	}
}

func TestFinishReleasesJob(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", RootID: "r", RootType: model.RootUser, ContentPath: "c/f1"})
	blobs.put("c/f1", []byte("one"))

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: model.OperationDownload, FileIDs: []string{"f1"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)
	if !final.Hold {
		t.Error("finished job should hold until fetched")
	}

	released, err := e.Finish(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}

	if released.Hold {
		t.Error("hold not released")
	}

	// 无落库兜底时记录随释放消失
	if _, err := e.Poll(context.Background(), snap.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("err = %v, want ErrJobNotFound after finish", err)
	}
}

func TestSweepRemovesExpiredJobs(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFile(&model.File{ID: "f1", Title: "a.txt", RootID: "r", RootType: model.RootUser, ContentPath: "c/f1"})
	blobs.put("c/f1", []byte("one"))

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{Kind: model.OperationDownload, FileIDs: []string{"f1"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	waitFinished(t, e, snap.ID)

	n, err := e.Sweep(context.Background(), 0)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if n != 1 {
		t.Errorf("swept %d jobs, want 1", n)
	}

	if _, err := e.Poll(context.Background(), snap.ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("swept job still visible: %v", err)
	}
}

// brokenACLFilter 权限后端不可用：CanDelete 返回基础设施错误.
type brokenACLFilter struct {
	allowAllFilter
}

func (brokenACLFilter) CanDelete(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return false, errors.New("acl backend unavailable")
}

// 权限检查本身出错（而非拒绝）时，条目错误必须报基础设施故障，
// 不能伪装成权限拒绝.
func TestDeleteFilterErrorNotReportedAsForbidden(t *testing.T) {
	ft := &fakeTree{}

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser})

	e := NewEngine(Options{
		Tree:   ft,
		Filter: brokenACLFilter{},
		Blobs:  newFakeBlob(),
	})

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDelete,
		FolderIDs: []string{"root"},
		Permanent: true,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if !strings.Contains(final.Error, "acl backend unavailable") {
		t.Errorf("error %q does not surface the filter failure", final.Error)
	}

	if strings.Contains(final.Error, "access denied") {
		t.Errorf("filter failure reported as permission denial: %q", final.Error)
	}
}

func TestMoveFilterErrorNotReportedAsForbidden(t *testing.T) {
	ft := &fakeTree{}

	ft.addFolder(&model.Folder{ID: "src", Title: "src", RootID: "src", RootType: model.RootUser})
	ft.addFolder(&model.Folder{ID: "dst", Title: "dst", RootID: "dst", RootType: model.RootUser})

	e := NewEngine(Options{
		Tree:   ft,
		Filter: brokenACLFilter{},
		Blobs:  newFakeBlob(),
	})

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:           model.OperationMove,
		FolderIDs:      []string{"src"},
		TargetFolderID: "dst",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if !strings.Contains(final.Error, "acl backend unavailable") {
		t.Errorf("error %q does not surface the filter failure", final.Error)
	}

	if strings.Contains(final.Error, "access denied") {
		t.Errorf("filter failure reported as permission denial: %q", final.Error)
	}

	// 出错不等于拒绝，但同样不能移动
	moved, _ := ft.Folder(context.Background(), "src")
	if moved.ParentID != "" {
		t.Errorf("folder moved despite filter failure, parent = %s", moved.ParentID)
	}
}

// 源流中途断开：条目保留已写入的前缀，错误文本点明截断字节数.
func TestDownloadTruncatedEntryRecorded(t *testing.T) {
	ft := &fakeTree{}
	blobs := newFakeBlob()

	ft.addFolder(&model.Folder{ID: "root", Title: "docs", RootID: "root", RootType: model.RootUser})
	ft.addFile(&model.File{ID: "f1", Title: "good.txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/f1"})
	ft.addFile(&model.File{ID: "f2", Title: "flaky.txt", ParentID: "root", RootID: "root", RootType: model.RootUser, ContentPath: "c/f2"})

	blobs.put("c/f1", []byte("intact"))
	blobs.put("c/f2", []byte("payload"))
	blobs.broken = map[string]int{"c/f2": 2}

	e := newTestEngine(ft, blobs, nil)

	snap, err := e.Submit(context.Background(), testPrincipal(), Request{
		Kind:      model.OperationDownload,
		FolderIDs: []string{"root"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitFinished(t, e, snap.ID)

	if final.Status != StatusCompleted {
		t.Fatalf("status = %s, error = %q", final.Status, final.Error)
	}

	if !strings.Contains(final.Error, "flaky.txt") || !strings.Contains(final.Error, "truncated after 2 bytes") {
		t.Errorf("error %q does not flag the truncated entry", final.Error)
	}

	data, ok := blobs.temp(final.Result)
	if !ok {
		t.Fatal("archive missing")
	}

	got := readArchive(t, data)

	if got["docs/good.txt"] != "intact" {
		t.Errorf("intact entry = %q", got["docs/good.txt"])
	}

	if got["docs/flaky.txt"] != "pa" {
		t.Errorf("truncated entry = %q, want the 2-byte prefix", got["docs/flaky.txt"])
	}
}
