// Package tree 提供目录树与标签行的读写访问. 操作引擎与标记引擎
// 只通过 Accessor 接口消费树数据，便于测试替换.
package tree

import (
	"context"
	"errors"

	"github.com/yeisme/docvault/pkg/internal/model"
)

// ErrEntryNotFound 条目不存在.
var ErrEntryNotFound = errors.New("tree: entry not found")

// Accessor 目录树访问接口.
type Accessor interface {
	// Folder 按 id 取文件夹.
	Folder(ctx context.Context, id string) (*model.Folder, error)
	// File 按 id 取当前版本文件行.
	File(ctx context.Context, id string) (*model.File, error)
	// FileVersions 按版本号升序返回文件的全部版本行.
	FileVersions(ctx context.Context, id string) ([]model.File, error)
	// ChildFolders 文件夹的直接子文件夹.
	ChildFolders(ctx context.Context, folderID string) ([]model.Folder, error)
	// ChildFiles 文件夹的直接子文件（仅当前版本行）.
	ChildFiles(ctx context.Context, folderID string) ([]model.File, error)
	// ParentChain 从 folderID 起向上到根的文件夹链（含 folderID 自身）.
	ParentChain(ctx context.Context, folderID string) ([]model.Folder, error)
	// ItemCount 文件夹的递归后代文件数，用于进度估算. 遍历间检查 ctx.
	ItemCount(ctx context.Context, folderID string) (int, error)

	// SaveFile 写入新版本行并维护"每文件 id 恰一个当前版本"不变式.
	SaveFile(ctx context.Context, f *model.File) error
	SaveFolder(ctx context.Context, f *model.Folder) error
	// SetFileParent / SetFolderParent 显式的单列更新（移动操作）.
	SetFileParent(ctx context.Context, fileID, parentID string, rootID string, rootType model.RootType) error
	SetFolderParent(ctx context.Context, folderID, parentID string, rootID string, rootType model.RootType) error
	// SetFileTitle / SetFolderTitle 显式的标题列更新（冲突改名）.
	SetFileTitle(ctx context.Context, fileID, title string) error
	SetFolderTitle(ctx context.Context, folderID, title string) error
	DeleteFile(ctx context.Context, fileID string) error
	DeleteFolder(ctx context.Context, folderID string) error

	// Tag 取单行标签，不存在时返回 (nil, nil).
	Tag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) (*model.Tag, error)
	// EntryTags 条目上所有 owner 的指定类型标签.
	EntryTags(ctx context.Context, entryID string, entryType model.EntryType, tagType model.TagType) ([]model.Tag, error)
	// OwnerTags owner 在一组条目上的指定类型标签.
	OwnerTags(ctx context.Context, owner string, entryIDs []string, tagType model.TagType) ([]model.Tag, error)
	SaveTag(ctx context.Context, t *model.Tag) error
	// SetTagCount 显式计数列更新.
	SetTagCount(ctx context.Context, rowID uint, count int) error
	DeleteTag(ctx context.Context, owner, entryID string, entryType model.EntryType, tagType model.TagType) error
}
