package repository

import (
	"context"
	"errors"

	"payoutsystem/internal/model"
	"payoutsystem/pkg/money"

	"gorm.io/gorm"
)

var (
	ErrBatchNotFound      = errors.New("批次不存在")
	ErrBatchStatusInvalid = errors.New("批次状态不合法")
)

type BatchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

func (r *BatchRepository) Create(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(batch).Error
}

func (r *BatchRepository) GetByID(ctx context.Context, id int64) (*model.PayoutBatch, error) {
	var batch model.PayoutBatch
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// UpdateStatus 按状态机推进批次状态，条件更新防止并发下的非法跳转
func (r *BatchRepository) UpdateStatus(ctx context.Context, tx *gorm.DB, batchID int64, fromStatus, toStatus string) error {
	if !model.CanBatchTransitionTo(fromStatus, toStatus) {
		return ErrBatchStatusInvalid
	}

	if tx == nil {
		tx = r.db
	}

	result := tx.WithContext(ctx).
		Model(&model.PayoutBatch{}).
		Where("id = ? AND status = ?", batchID, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchStatusInvalid
	}
	return nil
}

// UpdateTotal 回填批次总额（按需建批场景：边处理分组边累加，最后落库）
func (r *BatchRepository) UpdateTotal(ctx context.Context, tx *gorm.DB, batchID int64, total *money.Amount) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Model(&model.PayoutBatch{}).
		Where("id = ?", batchID).
		Update("total_amount_paise", total).Error
}

// List 分页查询批次，支持状态过滤和名称模糊搜索（管理端列表）
func (r *BatchRepository) List(ctx context.Context, status, nameQuery string, page, pageSize int) ([]*model.PayoutBatch, int64, error) {
	var batches []*model.PayoutBatch
	var total int64

	query := r.db.WithContext(ctx).Model(&model.PayoutBatch{})
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if nameQuery != "" {
		query = query.Where("name LIKE ?", "%"+nameQuery+"%")
	}

	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&batches).Error

	return batches, total, err
}
