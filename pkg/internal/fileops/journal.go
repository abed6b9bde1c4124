package fileops

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeisme/docvault/pkg/internal/model"
	"github.com/yeisme/docvault/pkg/internal/storage/db"
)

// Journal 终态快照的持久化接口. 运行中的任务只存在于内存任务表，
// 终结时落一行快照，进程重启后轮询端仍能拿到结果引用.
type Journal interface {
	SaveOperation(ctx context.Context, row *model.OperationRow) error
	// Operation 按 id 取快照行，不存在时返回 (nil, nil).
	Operation(ctx context.Context, id string) (*model.OperationRow, error)
	SetOperationHold(ctx context.Context, id string, hold bool) error
	// PurgeOperationsBefore 删除早于 cutoff 的终态行，返回删除数.
	PurgeOperationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// GormJournal 基于 GORM 的 Journal 实现.
type GormJournal struct {
	dbClient *db.Client
}

// NewGormJournal 创建 GormJournal.
func NewGormJournal(dbClient *db.Client) *GormJournal {
	return &GormJournal{dbClient: dbClient}
}

func (g *GormJournal) dbx(ctx context.Context) *gorm.DB {
	return g.dbClient.GetDB().WithContext(ctx)
}

// SaveOperation 以 id 为键写入或覆盖快照行.
func (g *GormJournal) SaveOperation(ctx context.Context, row *model.OperationRow) error {
	if err := g.dbx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(row).Error; err != nil {
		return fmt.Errorf("save operation %s: %w", row.ID, err)
	}

	return nil
}

// Operation 按 id 取快照行.
func (g *GormJournal) Operation(ctx context.Context, id string) (*model.OperationRow, error) {
	var row model.OperationRow
	if err := g.dbx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &row, nil
}

// SetOperationHold 显式的单列更新.
func (g *GormJournal) SetOperationHold(ctx context.Context, id string, hold bool) error {
	return g.dbx(ctx).Model(&model.OperationRow{}).
		Where("id = ?", id).
		Update("hold", hold).Error
}

// PurgeOperationsBefore 删除早于 cutoff 的终态行.
func (g *GormJournal) PurgeOperationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := g.dbx(ctx).
		Where("finished = ? AND updated_at < ?", true, cutoff).
		Delete(&model.OperationRow{})

	return res.RowsAffected, res.Error
}

// encodeSources 源条目 id 列表编码为 JSON 数组列.
func encodeSources(ids []string) string {
	data, err := sonic.Marshal(ids)
	if err != nil {
		return "[]"
	}

	return string(data)
}
