package tree

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/storage/db"
)

// Store 基于 GORM 的 Accessor 实现.
type Store struct {
	dbClient *db.Client
}

// NewStore 创建 Store.
func NewStore(dbClient *db.Client) *Store {
	return &Store{dbClient: dbClient}
}

// Migrate 建表.
func (s *Store) Migrate() error {
	return s.dbClient.GetDB().AutoMigrate(
		&model.Folder{}, &model.File{}, &model.Tag{}, &model.OperationRow{},
	)
}

func (s *Store) dbx(ctx context.Context) *gorm.DB {
	return s.dbClient.GetDB().WithContext(ctx)
}

// Folder 按 id 取文件夹.
func (s *Store) Folder(ctx context.Context, id string) (*model.Folder, error) {
	var f model.Folder
	if err := s.dbx(ctx).Where("id = ?", id).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: folder %s", ErrEntryNotFound, id)
		}

		return nil, err
	}

	return &f, nil
}

// File 按 id 取当前版本文件行.
func (s *Store) File(ctx context.Context, id string) (*model.File, error) {
	var f model.File
	if err := s.dbx(ctx).Where("id = ? AND current = ?", id, true).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrEntryNotFound, id)
		}

		return nil, err
	}

	return &f, nil
}

// FileVersions 按版本号升序返回文件的全部版本行.
func (s *Store) FileVersions(ctx context.Context, id string) ([]model.File, error) {
	var rows []model.File
	if err := s.dbx(ctx).Where("id = ?", id).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// ChildFolders 文件夹的直接子文件夹.
func (s *Store) ChildFolders(ctx context.Context, folderID string) ([]model.Folder, error) {
	var rows []model.Folder
	if err := s.dbx(ctx).Where("parent_id = ?", folderID).Order("title ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// ChildFiles 文件夹的直接子文件（仅当前版本行）.
func (s *Store) ChildFiles(ctx context.Context, folderID string) ([]model.File, error) {
	var rows []model.File
	if err := s.dbx(ctx).Where("parent_id = ? AND current = ?", folderID, true).
		Order("title ASC").Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// ParentChain 从 folderID 起向上到根（含自身）. 单行查询逐级向上，
// 树深度有限，环路通过 seen 集合防御.
func (s *Store) ParentChain(ctx context.Context, folderID string) ([]model.Folder, error) {
	chain := make([]model.Folder, 0, 8)
	seen := map[string]struct{}{}

	for id := folderID; id != ""; {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("tree: parent cycle at folder %s", id)
		}

		seen[id] = struct{}{}

		f, err := s.Folder(ctx, id)
		if err != nil {
			return nil, err
		}

		chain = append(chain, *f)
		id = f.ParentID
	}

	return chain, nil
}

// ItemCount 文件夹的递归后代文件数. 优先使用维护好的直接计数列，
// 子文件夹逐层展开，循环间检查取消信号.
func (s *Store) ItemCount(ctx context.Context, folderID string) (int, error) {
	total := 0
	queue := []string{folderID}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		id := queue[0]
		queue = queue[1:]

		f, err := s.Folder(ctx, id)
		if err != nil {
			return 0, err
		}

		total += f.FilesCount

		subs, err := s.ChildFolders(ctx, id)
		if err != nil {
			return 0, err
		}

		for i := range subs {
			queue = append(queue, subs[i].ID)
		}
	}

	return total, nil
}

// SaveFile 写入新版本行并维护"每文件 id 恰一个当前版本"不变式：
// 新行为当前版本时，旧的当前版本行在同一事务内翻转为历史版本.
func (s *Store) SaveFile(ctx context.Context, f *model.File) error {
	return s.dbx(ctx).Transaction(func(tx *gorm.DB) error {
		if f.Version <= 0 {
			var maxVersion int
			if err := tx.Model(&model.File{}).Where("id = ?", f.ID).
				Select("COALESCE(MAX(version), 0)").Scan(&maxVersion).Error; err != nil {
				return err
			}

			f.Version = maxVersion + 1
		}

		if f.Current {
			if err := tx.Model(&model.File{}).
				Where("id = ? AND current = ?", f.ID, true).
				Update("current", false).Error; err != nil {
				return err
			}
		}

		return tx.Create(f).Error
	})
}

// SaveFolder 写入文件夹行.
func (s *Store) SaveFolder(ctx context.Context, f *model.Folder) error {
	return s.dbx(ctx).Save(f).Error
}

// SetFileParent 移动文件：显式更新父目录与根归属列.
func (s *Store) SetFileParent(ctx context.Context, fileID, parentID, rootID string, rootType model.RootType) error {
	return s.dbx(ctx).Model(&model.File{}).Where("id = ?", fileID).
		Updates(map[string]any{
			"parent_id": parentID,
			"root_id":   rootID,
			"root_type": rootType,
		}).Error
}

// SetFolderParent 移动文件夹：显式更新父目录与根归属列.
func (s *Store) SetFolderParent(ctx context.Context, folderID, parentID, rootID string, rootType model.RootType) error {
	return s.dbx(ctx).Model(&model.Folder{}).Where("id = ?", folderID).
		Updates(map[string]any{
			"parent_id": parentID,
			"root_id":   rootID,
			"root_type": rootType,
		}).Error
}

// SetFileTitle 冲突改名：显式标题列更新（全部版本行同名）.
func (s *Store) SetFileTitle(ctx context.Context, fileID, title string) error {
	return s.dbx(ctx).Model(&model.File{}).Where("id = ?", fileID).
		Update("title", title).Error
}

// SetFolderTitle 冲突改名：显式标题列更新.
func (s *Store) SetFolderTitle(ctx context.Context, folderID, title string) error {
	return s.dbx(ctx).Model(&model.Folder{}).Where("id = ?", folderID).
		Update("title", title).Error
}

// DeleteFile 软删文件（全部版本行）.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	return s.dbx(ctx).Where("id = ?", fileID).Delete(&model.File{}).Error
}

// DeleteFolder 软删文件夹行.
func (s *Store) DeleteFolder(ctx context.Context, folderID string) error {
	return s.dbx(ctx).Where("id = ?", folderID).Delete(&model.Folder{}).Error
}

// Tag 取单行标签，不存在时返回 (nil, nil)：标签缺失按"待创建"处理，不是错误.
func (s *Store) Tag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) (*model.Tag, error) {
	var t model.Tag

	err := s.dbx(ctx).Where(
		"owner = ? AND entry_id = ? AND entry_type = ? AND type = ?",
		owner, entryID, entryType, tagType,
	).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &t, nil
}

// EntryTags 条目上所有 owner 的指定类型标签.
func (s *Store) EntryTags(ctx context.Context, entryID string, entryType model.EntryType, tagType model.TagType) ([]model.Tag, error) {
	var rows []model.Tag
	if err := s.dbx(ctx).Where(
		"entry_id = ? AND entry_type = ? AND type = ?", entryID, entryType, tagType,
	).Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// OwnerTags owner 在一组条目上的指定类型标签.
func (s *Store) OwnerTags(ctx context.Context, owner string, entryIDs []string, tagType model.TagType) ([]model.Tag, error) {
	if len(entryIDs) == 0 {
		return nil, nil
	}

	var rows []model.Tag
	if err := s.dbx(ctx).Where(
		"owner = ? AND entry_id IN ? AND type = ?", owner, entryIDs, tagType,
	).Find(&rows).Error; err != nil {
		return nil, err
	}

	return rows, nil
}

// SaveTag 新建或整行更新标签.
func (s *Store) SaveTag(ctx context.Context, t *model.Tag) error {
	return s.dbx(ctx).Save(t).Error
}

// SetTagCount 显式计数列更新.
func (s *Store) SetTagCount(ctx context.Context, rowID uint, count int) error {
	return s.dbx(ctx).Model(&model.Tag{}).Where("row_id = ?", rowID).
		Update("count", count).Error
}

// DeleteTag 删除标签行.
func (s *Store) DeleteTag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) error {
	return s.dbx(ctx).Where(
		"owner = ? AND entry_id = ? AND entry_type = ? AND type = ?",
		owner, entryID, entryType, tagType,
	).Delete(&model.Tag{}).Error
}
