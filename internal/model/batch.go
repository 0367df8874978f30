package model

import (
	"time"

	"payoutsystem/pkg/money"
)

const (
	BatchStatusDraft      = "DRAFT"
	BatchStatusPosted     = "POSTED"
	BatchStatusDisbursed  = "DISBURSED"
	BatchStatusReconciled = "RECONCILED"
	BatchStatusCancelled  = "CANCELLED"
)

// ValidBatchTransitions 批次状态机
var ValidBatchTransitions = map[string][]string{
	BatchStatusDraft:     {BatchStatusPosted, BatchStatusCancelled},
	BatchStatusPosted:    {BatchStatusDisbursed, BatchStatusCancelled},
	BatchStatusDisbursed: {BatchStatusReconciled},
}

func CanBatchTransitionTo(currentStatus, targetStatus string) bool {
	allowedStatuses, exists := ValidBatchTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// PayoutBatch 放款批次表
// 若干笔转账打包成一个批次提交给出款通道
//
// 【注意】total_amount_paise 只在建批时汇总一次，之后不随成员转账变动
// 自动重算（没有对账回填流程，对账是通道侧的事）
type PayoutBatch struct {
	ID               int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	BatchNo          string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"batch_no"`
	Name             string       `gorm:"type:varchar(128);not null" json:"name"`
	Status           string       `gorm:"type:varchar(20);index;not null" json:"status"`
	TotalAmountPaise money.Amount `gorm:"type:decimal(65,0);not null" json:"total_amount_paise"`
	CreatedByID      int64        `gorm:"index;not null" json:"created_by_id"` // 操作的管理员
	CreatedAt        time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PayoutBatch) TableName() string {
	return "payout_batch"
}
