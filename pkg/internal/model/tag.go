package model

import "time"

// TagType 标签类型.
type TagType string

const (
	// TagNew 未读标记. 文件上恒为 1（有/无），文件夹上为对该 owner
	// 可见的未读后代数量；计数归零时整行删除，不落库为 0.
	TagNew TagType = "new"
	// TagLocked 锁定标记.
	TagLocked TagType = "locked"
)

// Tag 每 (owner, entry, type) 一行的标签模型.
// 不变式：文件夹 New 计数等于其直接子项中仍对该 owner 可见的
// New 标签计数之和；最后一个贡献子项移除时文件夹标签一并删除.
type Tag struct {
	RowID     uint      `gorm:"primaryKey"                                json:"-"`
	Owner     string    `gorm:"size:255;index:idx_tag_owner_entry,unique" json:"owner"`
	EntryID   string    `gorm:"size:64;index:idx_tag_owner_entry,unique"  json:"entry_id"`
	EntryType EntryType `gorm:"size:8;index:idx_tag_owner_entry,unique"   json:"entry_type"`
	Type      TagType   `gorm:"size:8;index:idx_tag_owner_entry,unique"   json:"type"`
	Count     int       `json:"count"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
