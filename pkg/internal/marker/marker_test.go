package marker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/yeisme/docvault/pkg/cache"
	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "docvault-marker-test")
	if err != nil {
		panic(err)
	}

	defer func() { _ = os.RemoveAll(dir) }()

	if err := configs.InitConfig(dir); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

// tagKey 标签行主键.
type tagKey struct {
	owner     string
	entryID   string
	entryType model.EntryType
	tagType   model.TagType
}

// fakeTagTree 标签表与目录树的内存实现.
type fakeTagTree struct {
	mu      sync.Mutex
	folders map[string]*model.Folder
	files   map[string]*model.File
	tags    map[tagKey]*model.Tag
	nextRow uint
}

func newFakeTagTree() *fakeTagTree {
	return &fakeTagTree{
		folders: make(map[string]*model.Folder),
		files:   make(map[string]*model.File),
		tags:    make(map[tagKey]*model.Tag),
	}
}

func (ft *fakeTagTree) addFolder(f *model.Folder) *model.Folder {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.folders[f.ID] = f

	return f
}

func (ft *fakeTagTree) addFile(f *model.File) *model.File {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.files[f.ID] = f

	return f
}

func (ft *fakeTagTree) Folder(ctx context.Context, id string) (*model.Folder, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	f, ok := ft.folders[id]
	if !ok {
		return nil, fmt.Errorf("%w: folder %s", tree.ErrEntryNotFound, id)
	}

	cp := *f

	return &cp, nil
}

func (ft *fakeTagTree) File(ctx context.Context, id string) (*model.File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	f, ok := ft.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", tree.ErrEntryNotFound, id)
	}

	cp := *f

	return &cp, nil
}

func (ft *fakeTagTree) FileVersions(ctx context.Context, id string) ([]model.File, error) {
	return nil, nil
}

func (ft *fakeTagTree) ChildFolders(ctx context.Context, folderID string) ([]model.Folder, error) {
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

func (ft *fakeTagTree) ChildFiles(ctx context.Context, folderID string) ([]model.File, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.File

	for _, f := range ft.files {
		if f.ParentID == folderID {
			out = append(out, *f)
		}
	}

	return out, nil
}

func (ft *fakeTagTree) ParentChain(ctx context.Context, folderID string) ([]model.Folder, error) {
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

func (ft *fakeTagTree) ItemCount(ctx context.Context, folderID string) (int, error) { return 0, nil }

func (ft *fakeTagTree) SaveFile(ctx context.Context, f *model.File) error { return nil }

func (ft *fakeTagTree) SaveFolder(ctx context.Context, f *model.Folder) error { return nil }

func (ft *fakeTagTree) SetFileParent(ctx context.Context, fileID, parentID, rootID string, rootType model.RootType) error {
	return nil
}

func (ft *fakeTagTree) SetFolderParent(ctx context.Context, folderID, parentID, rootID string, rootType model.RootType) error {
	return nil
}

func (ft *fakeTagTree) SetFileTitle(ctx context.Context, fileID, title string) error { return nil }

func (ft *fakeTagTree) SetFolderTitle(ctx context.Context, folderID, title string) error { return nil }

func (ft *fakeTagTree) DeleteFile(ctx context.Context, fileID string) error { return nil }

func (ft *fakeTagTree) DeleteFolder(ctx context.Context, folderID string) error { return nil }

func (ft *fakeTagTree) Tag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) (*model.Tag, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	t, ok := ft.tags[tagKey{owner, entryID, entryType, tagType}]
	if !ok {
		return nil, nil
	}

	cp := *t

	return &cp, nil
}

func (ft *fakeTagTree) EntryTags(ctx context.Context, entryID string, entryType model.EntryType, tagType model.TagType) ([]model.Tag, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.Tag

	for k, t := range ft.tags {
		if k.entryID == entryID && k.entryType == entryType && k.tagType == tagType {
			out = append(out, *t)
		}
	}

	return out, nil
}

func (ft *fakeTagTree) OwnerTags(ctx context.Context, owner string, entryIDs []string, tagType model.TagType) ([]model.Tag, error) {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	var out []model.Tag

	for _, id := range entryIDs {
		for _, et := range []model.EntryType{model.EntryFile, model.EntryFolder} {
			if t, ok := ft.tags[tagKey{owner, id, et, tagType}]; ok {
				out = append(out, *t)
			}
		}
	}

	return out, nil
}

func (ft *fakeTagTree) SaveTag(ctx context.Context, t *model.Tag) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	ft.nextRow++
	cp := *t
	cp.RowID = ft.nextRow
	ft.tags[tagKey{t.Owner, t.EntryID, t.EntryType, t.Type}] = &cp

	return nil
}

func (ft *fakeTagTree) SetTagCount(ctx context.Context, rowID uint, count int) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	for _, t := range ft.tags {
		if t.RowID == rowID {
			t.Count = count
		}
	}

	return nil
}

func (ft *fakeTagTree) DeleteTag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) error {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	delete(ft.tags, tagKey{owner, entryID, entryType, tagType})

	return nil
}

// count 取标签计数，缺行为 0.
func (ft *fakeTagTree) count(owner, entryID string, entryType model.EntryType) int {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if t, ok := ft.tags[tagKey{owner, entryID, entryType, model.TagNew}]; ok {
		return t.Count
	}

	return 0
}

// stubFilter 固定可读用户集.
type stubFilter struct {
	readers []string
	team    []string
	guests  map[string]bool
}

func (s *stubFilter) CanRead(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (s *stubFilter) CanEdit(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (s *stubFilter) CanDelete(ctx context.Context, p security.Principal, e model.Entry) (bool, error) {
	return true, nil
}

func (s *stubFilter) FilterReadable(ctx context.Context, p security.Principal, entries []model.Entry) ([]model.Entry, error) {
	return entries, nil
}

func (s *stubFilter) WhoCanRead(ctx context.Context, e model.Entry) ([]string, error) {
	return s.readers, nil
}

func (s *stubFilter) ProjectTeam(ctx context.Context, projectID string) ([]string, error) {
	return s.team, nil
}

func (s *stubFilter) IsGuest(ctx context.Context, subject string) (bool, error) {
	return s.guests[subject], nil
}

// mockKVStore 内存 KV，供计数缓存测试.
type mockKVStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string][]byte)}
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.data[key]; ok {
		return v, nil
	}

	return nil, fmt.Errorf("key not found")
}

func (m *mockKVStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value

	return nil
}

func (m *mockKVStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)

	return nil
}

func (m *mockKVStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.data[key]

	return ok, nil
}

func (m *mockKVStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}

	return out, nil
}

func (m *mockKVStore) Close() error { return nil }

// startEngine 启动测试引擎，测试结束时停止消费协程.
func startEngine(t *testing.T, ft *fakeTagTree, f security.Filter, c *cache.Cache) *Engine {
	t.Helper()

	e := NewEngine(ft, f, c, nil)

	ctx, cancel := context.WithCancel(context.Background())

	go e.Run(ctx)

	t.Cleanup(func() {
		cancel()
		<-e.Done()
	})

	return e
}

// flush 借单消费者 FIFO 语义等待之前的异步变更全部应用：
// 同步清除一个无标签条目是 no-op，返回即表示队列已排空.
func flush(t *testing.T, e *Engine) {
	t.Helper()

	dummy := &model.File{ID: "flush-barrier", RootType: model.RootUser}
	if err := e.RemoveNew(context.Background(), dummy, "nobody"); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// personalTree 个人空间：root(bob) / sub / f1.
func personalTree(ft *fakeTagTree) (*model.Folder, *model.Folder, *model.File) {
	root := ft.addFolder(&model.Folder{ID: "root", Title: "bob-docs", RootID: "root", RootType: model.RootUser, CreatorID: "bob"})
	sub := ft.addFolder(&model.Folder{ID: "sub", Title: "inbox", ParentID: "root", RootID: "root", RootType: model.RootUser, CreatorID: "bob"})
	f1 := ft.addFile(&model.File{ID: "f1", Title: "a.txt", ParentID: "sub", RootID: "root", RootType: model.RootUser, CreatorID: "alice"})

	return root, sub, f1
}

func TestMarkNewPropagatesToAncestors(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	e := startEngine(t, ft, &stubFilter{readers: []string{"alice", "bob"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	// 发起者不计；bob 得到叶标签与祖先链计数
	if got := ft.count("alice", "f1", model.EntryFile); got != 0 {
		t.Errorf("actor tagged: %d", got)
	}

	if got := ft.count("bob", "f1", model.EntryFile); got != 1 {
		t.Errorf("leaf count = %d, want 1", got)
	}

	for _, id := range []string{"sub", "root"} {
		if got := ft.count("bob", id, model.EntryFolder); got != 1 {
			t.Errorf("%s count = %d, want 1", id, got)
		}
	}

	// 根属于 bob，计入"我的文件"桶
	if got := ft.count("bob", RootMy, model.EntryFolder); got != 1 {
		t.Errorf("bucket count = %d, want 1", got)
	}

	if got := ft.count("bob", RootShare, model.EntryFolder); got != 0 {
		t.Errorf("share bucket count = %d, want 0", got)
	}
}

func TestMarkNewIdempotent(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	for i := 0; i < 3; i++ {
		if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}

	flush(t, e)

	// 重复标记整体跳过，计数不会翻倍
	if got := ft.count("bob", "f1", model.EntryFile); got != 1 {
		t.Errorf("leaf count = %d, want 1", got)
	}

	if got := ft.count("bob", "root", model.EntryFolder); got != 1 {
		t.Errorf("root count = %d, want 1", got)
	}

	if got := ft.count("bob", RootMy, model.EntryFolder); got != 1 {
		t.Errorf("bucket count = %d, want 1", got)
	}
}

func TestFolderCountEqualsChildSum(t *testing.T) {
	ft := newFakeTagTree()
	_, sub, _ := personalTree(ft)
	f2 := ft.addFile(&model.File{ID: "f2", Title: "b.txt", ParentID: "sub", RootID: "root", RootType: model.RootUser, CreatorID: "alice"})
	f1, _ := ft.File(context.Background(), "f1")

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark f1: %v", err)
	}

	if err := e.MarkNew(context.Background(), f2, "alice"); err != nil {
		t.Fatalf("mark f2: %v", err)
	}

	flush(t, e)

	leafSum := ft.count("bob", "f1", model.EntryFile) + ft.count("bob", "f2", model.EntryFile)
	if got := ft.count("bob", sub.ID, model.EntryFolder); got != leafSum {
		t.Errorf("folder count %d != child sum %d", got, leafSum)
	}

	if got := ft.count("bob", RootMy, model.EntryFolder); got != 2 {
		t.Errorf("bucket count = %d, want 2", got)
	}
}

func TestRemoveNewFileDeletesZeroRows(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	if err := e.RemoveNew(context.Background(), f1, "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	// 计数归零的标签整行删除，不落库为 0
	ft.mu.Lock()
	rows := len(ft.tags)
	ft.mu.Unlock()

	if rows != 0 {
		t.Errorf("%d tag rows survived, want 0: %v", rows, ft.tags)
	}
}

func TestRemoveNewFolderSubtractsAggregate(t *testing.T) {
	ft := newFakeTagTree()
	_, sub, _ := personalTree(ft)
	ft.addFile(&model.File{ID: "f2", Title: "b.txt", ParentID: "sub", RootID: "root", RootType: model.RootUser, CreatorID: "alice"})
	ft.addFile(&model.File{ID: "f3", Title: "c.txt", ParentID: "root", RootID: "root", RootType: model.RootUser, CreatorID: "alice"})

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	for _, id := range []string{"f1", "f2", "f3"} {
		f, _ := ft.File(context.Background(), id)
		if err := e.MarkNew(context.Background(), f, "alice"); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}

	flush(t, e)

	if got := ft.count("bob", "root", model.EntryFolder); got != 3 {
		t.Fatalf("root count = %d, want 3", got)
	}

	// 清除文件夹标记按其聚合计数整体扣减
	if err := e.RemoveNew(context.Background(), sub, "bob"); err != nil {
		t.Fatalf("remove folder: %v", err)
	}

	if got := ft.count("bob", "sub", model.EntryFolder); got != 0 {
		t.Errorf("sub count = %d, want 0", got)
	}

	if got := ft.count("bob", "root", model.EntryFolder); got != 1 {
		t.Errorf("root count = %d, want 1", got)
	}

	if got := ft.count("bob", RootMy, model.EntryFolder); got != 1 {
		t.Errorf("bucket count = %d, want 1", got)
	}
}

func TestRemoveNewForAllOwners(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob", "carol"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	if err := e.RemoveNewForAll(context.Background(), f1); err != nil {
		t.Fatalf("remove all: %v", err)
	}

	for _, owner := range []string{"bob", "carol"} {
		if got := ft.count(owner, "f1", model.EntryFile); got != 0 {
			t.Errorf("%s leaf count = %d, want 0", owner, got)
		}

		if got := ft.count(owner, "root", model.EntryFolder); got != 0 {
			t.Errorf("%s root count = %d, want 0", owner, got)
		}
	}
}

func TestSharedViewerCountsInShareBucket(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	// carol 不是根的主人，经共享可见
	e := startEngine(t, ft, &stubFilter{readers: []string{"carol"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	if got := ft.count("carol", RootShare, model.EntryFolder); got != 1 {
		t.Errorf("share bucket = %d, want 1", got)
	}

	if got := ft.count("carol", RootMy, model.EntryFolder); got != 0 {
		t.Errorf("my bucket = %d, want 0", got)
	}
}

func TestTrashEntriesNotCounted(t *testing.T) {
	ft := newFakeTagTree()
	trash := ft.addFolder(&model.Folder{ID: "trash", Title: "trash", RootID: "trash", RootType: model.RootTrash, CreatorID: "bob"})
	f := ft.addFile(&model.File{ID: "tf", Title: "old.txt", ParentID: trash.ID, RootID: "trash", RootType: model.RootTrash, CreatorID: "alice"})

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	if err := e.MarkNew(context.Background(), f, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	for _, b := range Buckets {
		if got := ft.count("bob", b, model.EntryFolder); got != 0 {
			t.Errorf("bucket %s = %d, want 0", b, got)
		}
	}
}

func TestProviderEntrySkipsGuests(t *testing.T) {
	ft := newFakeTagTree()
	root := ft.addFolder(&model.Folder{ID: "proot", Title: "drive", RootID: "proot", RootType: model.RootProvider, CreatorID: "bob", Provider: true})
	f := ft.addFile(&model.File{ID: "pf", Title: "ext.doc", ParentID: root.ID, RootID: "proot", RootType: model.RootProvider, CreatorID: "alice", Provider: true})

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob", "guest1"}, guests: map[string]bool{"guest1": true}}, nil)

	if err := e.MarkNew(context.Background(), f, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	if got := ft.count("bob", "pf", model.EntryFile); got != 1 {
		t.Errorf("bob leaf = %d, want 1", got)
	}

	if got := ft.count("guest1", "pf", model.EntryFile); got != 0 {
		t.Errorf("guest tagged: %d", got)
	}
}

func TestProjectEntryUsesTeam(t *testing.T) {
	ft := newFakeTagTree()
	root := ft.addFolder(&model.Folder{ID: "pj", Title: "apollo", RootID: "pj", RootType: model.RootProject, CreatorID: "bob", ProjectID: "apollo-1"})
	f := ft.addFile(&model.File{ID: "pjf", Title: "plan.md", ParentID: root.ID, RootID: "pj", RootType: model.RootProject, CreatorID: "alice"})

	// 项目可见集取项目成员，而非公开读过滤
	e := startEngine(t, ft, &stubFilter{readers: []string{"outsider"}, team: []string{"bob", "carol"}}, nil)

	if err := e.MarkNew(context.Background(), f, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	for _, owner := range []string{"bob", "carol"} {
		if got := ft.count(owner, RootProjects, model.EntryFolder); got != 1 {
			t.Errorf("%s projects bucket = %d, want 1", owner, got)
		}
	}

	if got := ft.count("outsider", "pjf", model.EntryFile); got != 0 {
		t.Errorf("outsider tagged: %d", got)
	}
}

func TestGetNewCountsCachesExplicitZero(t *testing.T) {
	ft := newFakeTagTree()
	kvs := newMockKVStore()
	c := cache.NewCache(kvs)

	e := startEngine(t, ft, &stubFilter{}, c)

	counts, err := e.GetNewCounts(context.Background(), "bob")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}

	for _, b := range Buckets {
		if counts[b] != 0 {
			t.Errorf("bucket %s = %d, want 0", b, counts[b])
		}
	}

	// 确认为空的桶显式缓存 0，与"未知"区分
	kvs.mu.Lock()
	cached := len(kvs.data)
	kvs.mu.Unlock()

	if cached != len(Buckets) {
		t.Errorf("%d buckets cached, want %d", cached, len(Buckets))
	}
}

func TestMarkInvalidatesCountCache(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	kvs := newMockKVStore()
	c := cache.NewCache(kvs)

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, c)

	// 预热缓存：全部桶为 0
	if _, err := e.GetNewCounts(context.Background(), "bob"); err != nil {
		t.Fatalf("warm counts: %v", err)
	}

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	// 标记提交后缓存失效，下一次读取拿到新值而非过期 0
	counts, err := e.GetNewCounts(context.Background(), "bob")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}

	if counts[RootMy] != 1 {
		t.Errorf("my bucket = %d, want 1 after invalidation", counts[RootMy])
	}
}

func TestListNewEntriesPrunesUntaggedBranches(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)
	ft.addFolder(&model.Folder{ID: "quiet", Title: "quiet", ParentID: "root", RootID: "root", RootType: model.RootUser, CreatorID: "bob"})
	ft.addFile(&model.File{ID: "qf", Title: "seen.txt", ParentID: "quiet", RootID: "root", RootType: model.RootUser, CreatorID: "alice"})

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	if err := e.MarkNew(context.Background(), f1, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	entries, err := e.ListNewEntries(context.Background(), "root", "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	ids := make(map[string]bool, len(entries))
	for _, en := range entries {
		ids[en.GetID()] = true
	}

	if !ids["sub"] || !ids["f1"] {
		t.Errorf("expected sub and f1 in %v", ids)
	}

	if ids["quiet"] || ids["qf"] {
		t.Errorf("untagged branch not pruned: %v", ids)
	}
}

func TestRemoveNewOnUntaggedEntryIsNoop(t *testing.T) {
	ft := newFakeTagTree()
	_, _, f1 := personalTree(ft)

	e := startEngine(t, ft, &stubFilter{}, nil)

	if err := e.RemoveNew(context.Background(), f1, "bob"); err != nil {
		t.Fatalf("remove untagged: %v", err)
	}
}

func TestBrokenEntryNotMarked(t *testing.T) {
	ft := newFakeTagTree()
	broken := ft.addFile(&model.File{ID: "bf", Title: "bad.txt", RootID: "r", RootType: model.RootUser, Error: "corrupt"})

	e := startEngine(t, ft, &stubFilter{readers: []string{"bob"}}, nil)

	if err := e.MarkNew(context.Background(), broken, "alice"); err != nil {
		t.Fatalf("mark: %v", err)
	}

	flush(t, e)

	if got := ft.count("bob", "bf", model.EntryFile); got != 0 {
		t.Errorf("broken entry tagged: %d", got)
	}
}
