package repository

import (
	"context"
	"errors"
	"time"

	"payoutsystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrConcurrencyConflict = errors.New("付款记录已被其他任务认领")
)

type PayoutRepository struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// GetEligible 查询可结算的付款记录：已绑卡、未认领、状态 REQUESTED
// cutoff 非零时只取 created_at < cutoff 的记录（周结算按窗口右界截断）
// 查不到返回空切片，由调用方当作"本轮无事可做"处理
func (r *PayoutRepository) GetEligible(ctx context.Context, cutoff time.Time) ([]*model.UserPayout, error) {
	var payouts []*model.UserPayout

	query := r.db.WithContext(ctx).
		Where("bank_account_id IS NOT NULL AND transfer_id IS NULL AND status = ?", model.PayoutStatusRequested)

	if !cutoff.IsZero() {
		query = query.Where("created_at < ?", cutoff)
	}

	err := query.Order("created_at ASC").Find(&payouts).Error
	return payouts, err
}

// ClaimForTransfer 把一组付款记录认领到指定转账名下
//
// 【关键点】条件更新：只认领仍然满足 transfer_id IS NULL AND status = REQUESTED
// 的行。返回实际影响行数，调用方与期望数量比对 —— 少了说明有并发任务
// 抢先认领了部分记录，本分组必须整体回滚，否则转账金额和名下付款对不上
func (r *PayoutRepository) ClaimForTransfer(ctx context.Context, tx *gorm.DB, payoutIDs []int64, transferID int64) (int64, error) {
	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.UserPayout{}).
		Where("id IN ? AND transfer_id IS NULL AND status = ?", payoutIDs, model.PayoutStatusRequested).
		Updates(map[string]interface{}{
			"transfer_id": transferID,
			"status":      model.PayoutStatusApproved,
		})

	return result.RowsAffected, result.Error
}

// List 分页查询付款记录（管理端列表）
func (r *PayoutRepository) List(ctx context.Context, status string, page, pageSize int) ([]*model.UserPayout, int64, error) {
	var payouts []*model.UserPayout
	var total int64

	query := r.db.WithContext(ctx).Model(&model.UserPayout{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&payouts).Error

	return payouts, total, err
}
