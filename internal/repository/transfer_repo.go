package repository

import (
	"context"
	"errors"

	"payoutsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrTransferNotFound = errors.New("转账记录不存在")
)

type TransferRepository struct {
	db *gorm.DB
}

func NewTransferRepository(db *gorm.DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func (r *TransferRepository) Create(ctx context.Context, tx *gorm.DB, transfer *model.PayoutTransfer) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(transfer).Error
}

// UpsertByIdempotencyKey 按幂等键插入或更新转账
//
// 键已存在时只刷新金额和结算窗口（同一周重跑会按当前未认领付款重新
// 计算分组总额），单号、用户、银行账户保持首次创建时的值。
// 无论走哪条路径都回读一次，保证拿到带 ID 的完整记录
func (r *TransferRepository) UpsertByIdempotencyKey(ctx context.Context, tx *gorm.DB, transfer *model.PayoutTransfer) (*model.PayoutTransfer, error) {
	if tx == nil {
		tx = r.db
	}

	err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount_paise", "cycle_start", "cycle_end"}),
		}).
		Create(transfer).Error
	if err != nil {
		return nil, err
	}

	var out model.PayoutTransfer
	err = tx.WithContext(ctx).
		Where("idempotency_key = ?", transfer.IdempotencyKey).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUnbatched 查询未入批的转账：batch_id IS NULL 且状态 REQUESTED
// cycleKey 非空时限定周期；limit > 0 时截断数量
func (r *TransferRepository) GetUnbatched(ctx context.Context, cycleKey string, limit int) ([]*model.PayoutTransfer, error) {
	var transfers []*model.PayoutTransfer

	query := r.db.WithContext(ctx).
		Where("batch_id IS NULL AND status = ?", model.PayoutStatusRequested)

	if cycleKey != "" {
		query = query.Where("cycle_key = ?", cycleKey)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("created_at ASC").Find(&transfers).Error
	return transfers, err
}

// AttachToBatch 把一组转账挂到批次名下
//
// 【关键点】和付款认领同款的条件更新：只挂仍然 batch_id IS NULL 的行，
// 返回影响行数由调用方比对。两个并发建批请求读到重叠的转账集合时，
// 后提交的一方行数对不上、整体回滚，不会把一笔转账放进两个批次
func (r *TransferRepository) AttachToBatch(ctx context.Context, tx *gorm.DB, transferIDs []int64, batchID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PayoutTransfer{}).
		Where("id IN ? AND batch_id IS NULL AND status = ?", transferIDs, model.PayoutStatusRequested).
		Update("batch_id", batchID)

	return result.RowsAffected, result.Error
}

// GetByBatchID 查询批次名下的全部转账
func (r *TransferRepository) GetByBatchID(ctx context.Context, batchID int64) ([]*model.PayoutTransfer, error) {
	var transfers []*model.PayoutTransfer
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&transfers).Error
	return transfers, err
}
