package model

import "time"

// GrantMode 授权级别，数值越大权限越高.
type GrantMode int8

const (
	GrantRead GrantMode = iota + 1
	GrantEdit
	GrantFull
)

// AccessGrant 条目级授权行. 授权沿目录树向下继承，
// 判定时取条目自身与祖先链上的最高授权.
type AccessGrant struct {
	RowID     uint      `gorm:"primaryKey"                                  json:"-"`
	Subject   string    `gorm:"size:255;index:idx_grant_subj_entry,unique"  json:"subject"`
	EntryID   string    `gorm:"size:64;index:idx_grant_subj_entry,unique"   json:"entry_id"`
	EntryType EntryType `gorm:"size:8;index:idx_grant_subj_entry,unique"    json:"entry_type"`
	Mode      GrantMode `json:"mode"`

	CreatedAt time.Time
}

// Account 最小账号模型. Guest 账号没有编辑能力，
// 外部存储条目的未读通知会跳过这类账号.
type Account struct {
	ID    string `gorm:"primaryKey;size:255" json:"id"`
	Guest bool   `json:"guest"`

	CreatedAt time.Time
}

// ProjectMember 项目成员关系，项目空间条目的可见性以此为准.
type ProjectMember struct {
	RowID     uint   `gorm:"primaryKey"                                  json:"-"`
	ProjectID string `gorm:"size:64;index:idx_member_proj_subj,unique"   json:"project_id"`
	Subject   string `gorm:"size:255;index:idx_member_proj_subj,unique"  json:"subject"`

	CreatedAt time.Time
}
