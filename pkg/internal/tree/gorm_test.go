package tree

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/storage/db"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	store := NewStore(&db.Client{DB: gdb})
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return store, gdb
}

func currentRows(t *testing.T, gdb *gorm.DB, fileID string) []model.File {
	t.Helper()

	var rows []model.File
	if err := gdb.Where("id = ? AND current = ?", fileID, true).Find(&rows).Error; err != nil {
		t.Fatalf("query current rows: %v", err)
	}

	return rows
}

// 同一文件 id 反复保存新版本：版本号自动递增，且任意时刻
// 恰有一行 current=true.
func TestSaveFileSingleCurrentVersion(t *testing.T) {
	store, gdb := newTestStore(t)
	ctx := context.Background()

	first := &model.File{
		ID:       "file-1",
		Title:    "report.docx",
		ParentID: "folder-1",
		RootID:   "root-user",
		RootType: model.RootUser,
		Current:  true,
	}
	if err := store.SaveFile(ctx, first); err != nil {
		t.Fatalf("save v1: %v", err)
	}

	if first.Version != 1 {
		t.Errorf("first version = %d, want 1", first.Version)
	}

	second := &model.File{
		ID:       "file-1",
		Title:    "report.docx",
		ParentID: "folder-1",
		RootID:   "root-user",
		RootType: model.RootUser,
		Current:  true,
	}
	if err := store.SaveFile(ctx, second); err != nil {
		t.Fatalf("save v2: %v", err)
	}

	if second.Version != 2 {
		t.Errorf("second version = %d, want 2", second.Version)
	}

	rows := currentRows(t, gdb, "file-1")
	if len(rows) != 1 {
		t.Fatalf("current rows = %d, want 1", len(rows))
	}

	if rows[0].Version != 2 {
		t.Errorf("current version = %d, want 2", rows[0].Version)
	}

	got, err := store.File(ctx, "file-1")
	if err != nil {
		t.Fatalf("load current: %v", err)
	}

	if got.Version != 2 {
		t.Errorf("File() version = %d, want 2", got.Version)
	}

	versions, err := store.FileVersions(ctx, "file-1")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}

	if len(versions) != 2 || versions[0].Version != 1 || versions[1].Version != 2 {
		t.Errorf("versions = %+v, want ascending [1 2]", versions)
	}
}

// 中间评审版本以 current=false 写入时不得夺走当前标记.
func TestSaveFileNonCurrentKeepsFlag(t *testing.T) {
	store, gdb := newTestStore(t)
	ctx := context.Background()

	head := &model.File{ID: "file-2", Title: "draft.md", Current: true}
	if err := store.SaveFile(ctx, head); err != nil {
		t.Fatalf("save head: %v", err)
	}

	review := &model.File{ID: "file-2", Title: "draft.md", Current: false}
	if err := store.SaveFile(ctx, review); err != nil {
		t.Fatalf("save review: %v", err)
	}

	rows := currentRows(t, gdb, "file-2")
	if len(rows) != 1 || rows[0].Version != 1 {
		t.Fatalf("current rows = %+v, want only version 1", rows)
	}
}

func TestTagRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	got, err := store.Tag(ctx, "alice", "folder-1", model.EntryFolder, model.TagNew)
	if err != nil {
		t.Fatalf("tag miss: %v", err)
	}

	if got != nil {
		t.Fatalf("absent tag = %+v, want nil", got)
	}

	tag := &model.Tag{
		Owner:     "alice",
		EntryID:   "folder-1",
		EntryType: model.EntryFolder,
		Type:      model.TagNew,
		Count:     3,
	}
	if err := store.SaveTag(ctx, tag); err != nil {
		t.Fatalf("save tag: %v", err)
	}

	got, err = store.Tag(ctx, "alice", "folder-1", model.EntryFolder, model.TagNew)
	if err != nil || got == nil {
		t.Fatalf("tag after save = %+v, %v", got, err)
	}

	if got.Count != 3 {
		t.Errorf("count = %d, want 3", got.Count)
	}

	if err := store.SetTagCount(ctx, got.RowID, 5); err != nil {
		t.Fatalf("set count: %v", err)
	}

	got, err = store.Tag(ctx, "alice", "folder-1", model.EntryFolder, model.TagNew)
	if err != nil || got == nil {
		t.Fatalf("tag after count update = %+v, %v", got, err)
	}

	if got.Count != 5 {
		t.Errorf("count after update = %d, want 5", got.Count)
	}

	if err := store.DeleteTag(ctx, "alice", "folder-1", model.EntryFolder, model.TagNew); err != nil {
		t.Fatalf("delete tag: %v", err)
	}

	got, err = store.Tag(ctx, "alice", "folder-1", model.EntryFolder, model.TagNew)
	if err != nil {
		t.Fatalf("tag after delete: %v", err)
	}

	if got != nil {
		t.Errorf("deleted tag still present: %+v", got)
	}
}
