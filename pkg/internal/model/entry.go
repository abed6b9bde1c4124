// Package model 定义目录树、标签与后台操作的持久化模型.
package model

import (
	"time"

	"gorm.io/gorm"
)

// RootType 条目最终祖先所属的逻辑树.
type RootType string

const (
	RootUser     RootType = "user"     // 个人空间
	RootCommon   RootType = "common"   // 公共空间
	RootShare    RootType = "share"    // 共享给我
	RootTrash    RootType = "trash"    // 回收站
	RootProject  RootType = "project"  // 项目空间
	RootProvider RootType = "provider" // 外部存储连接器
)

// EntryType 条目类型.
type EntryType string

const (
	EntryFile   EntryType = "file"
	EntryFolder EntryType = "folder"
)

// ForcesaveType 强制保存模式.
type ForcesaveType string

const (
	ForcesaveNone   ForcesaveType = "none"
	ForcesaveUser   ForcesaveType = "user"
	ForcesaveSystem ForcesaveType = "system"
)

// Entry 是 File 与 Folder 的公共视图，供树遍历、权限过滤与标记引擎使用.
type Entry interface {
	GetID() string
	GetTitle() string
	GetParentID() string
	GetRootID() string
	GetRootType() RootType
	GetCreatorID() string
	GetEntryType() EntryType
	// IsProvider 条目是否由外部存储连接器承载
	IsProvider() bool
	// BrokenError 非空表示条目处于损坏状态，应跳过而不是报错
	BrokenError() string
}

// Folder 文件夹模型.
type Folder struct {
	ID       string `gorm:"primaryKey;size:64"            json:"id"`
	Title    string `gorm:"size:512;index"                json:"title"`
	ParentID string `gorm:"size:64;index"                 json:"parent_id"`
	// RootID 所属逻辑树的根文件夹 id
	RootID    string   `gorm:"size:64;index" json:"root_id"`
	RootType  RootType `gorm:"size:16;index" json:"root_type"`
	CreatorID string   `gorm:"size:255"      json:"creator_id"`
	// ProjectID 项目空间文件夹所属的项目
	ProjectID string `gorm:"size:64;index" json:"project_id,omitempty"`
	Provider  bool   `gorm:"index"         json:"provider"`
	// Error 非空表示条目损坏
	Error string `gorm:"type:text" json:"error,omitempty"`
	// FilesCount/FoldersCount 直接子项计数，写入路径维护，供进度估算
	FilesCount   int `json:"files_count"`
	FoldersCount int `json:"folders_count"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (f *Folder) GetID() string           { return f.ID }
func (f *Folder) GetTitle() string        { return f.Title }
func (f *Folder) GetParentID() string     { return f.ParentID }
func (f *Folder) GetRootID() string       { return f.RootID }
func (f *Folder) GetRootType() RootType   { return f.RootType }
func (f *Folder) GetCreatorID() string    { return f.CreatorID }
func (f *Folder) GetEntryType() EntryType { return EntryFolder }
func (f *Folder) IsProvider() bool        { return f.Provider }
func (f *Folder) BrokenError() string     { return f.Error }

// File 文件模型. 同一文件 id 下存在多个版本行，Current 标记当前版本，
// 任意时刻每个文件 id 恰有一行 Current=true，版本号从 1 起连续递增.
type File struct {
	RowID    uint   `gorm:"primaryKey"                               json:"-"`
	ID       string `gorm:"size:64;index:idx_file_version,unique"    json:"id"`
	Version  int    `gorm:"index:idx_file_version,unique"            json:"version"`
	Title    string `gorm:"size:512;index"                           json:"title"`
	ParentID string `gorm:"size:64;index"                            json:"parent_id"`

	RootID    string   `gorm:"size:64;index" json:"root_id"`
	RootType  RootType `gorm:"size:16;index" json:"root_type"`
	CreatorID string   `gorm:"size:255"      json:"creator_id"`
	Provider  bool     `gorm:"index"         json:"provider"`
	Error     string   `gorm:"type:text"     json:"error,omitempty"`

	// VersionGroup 同组版本共享组号（中间评审版本并入同组）
	VersionGroup int  `json:"version_group"`
	Current      bool `gorm:"index" json:"current"`
	// ContentLength 当前版本内容长度（字节）
	ContentLength int64 `json:"content_length"`
	// ContentPath 对象存储中的内容路径
	ContentPath string        `gorm:"size:1024" json:"content_path"`
	Forcesave   ForcesaveType `gorm:"size:16"   json:"forcesave"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (f *File) GetID() string           { return f.ID }
func (f *File) GetTitle() string        { return f.Title }
func (f *File) GetParentID() string     { return f.ParentID }
func (f *File) GetRootID() string       { return f.RootID }
func (f *File) GetRootType() RootType   { return f.RootType }
func (f *File) GetCreatorID() string    { return f.CreatorID }
func (f *File) GetEntryType() EntryType { return EntryFile }
func (f *File) IsProvider() bool        { return f.Provider }
func (f *File) BrokenError() string     { return f.Error }

// Extension 返回标题中的扩展名（含点），无扩展名时返回空串.
func (f *File) Extension() string {
	for i := len(f.Title) - 1; i >= 0; i-- {
		switch f.Title[i] {
		case '.':
			return f.Title[i:]
		case '/':
			return ""
		}
	}

	return ""
}
