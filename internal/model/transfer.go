package model

import (
	"fmt"
	"time"

	"payoutsystem/pkg/money"
)

// PayoutTransfer 付款转账表
// 同一（用户, 银行账户, 结算周期）的所有付款记录归并成一笔转账，
// 幂等键保证每周每个分组至多一笔
type PayoutTransfer struct {
	ID             int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	TransferNo     string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"transfer_no"`
	IdempotencyKey string       `gorm:"type:varchar(128);uniqueIndex;not null" json:"idempotency_key"`
	UserID         int64        `gorm:"index;not null" json:"user_id"`
	BankAccountID  int64        `gorm:"index;not null" json:"bank_account_id"`
	AmountPaise    money.Amount `gorm:"type:decimal(65,0);not null" json:"amount_paise"` // 分组内付款金额之和
	Status         string       `gorm:"type:varchar(20);index;not null" json:"status"`   // 复用付款状态枚举，创建即 REQUESTED
	CycleKey       string       `gorm:"type:varchar(16);index" json:"cycle_key"`         // 周期标识（周日 IST 日期）；按需建批场景为空
	CycleStart     *time.Time   `json:"cycle_start"`                                     // 结算窗口 [start, end)
	CycleEnd       *time.Time   `json:"cycle_end"`
	BatchID        *int64       `gorm:"index" json:"batch_id"` // 归属批次，NULL 表示未入批
	CreatedAt      time.Time    `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PayoutTransfer) TableName() string {
	return "payout_transfer"
}

// BuildTransferIdempotencyKey 周结算幂等键
// 对固定的（周期, 用户, 银行账户）永远生成同一个键 —— 重跑只会更新不会重复建单。
// 只做拼接，不承载任何业务逻辑
func BuildTransferIdempotencyKey(cycleKey string, userID, bankAccountID int64) string {
	return fmt.Sprintf("payout-transfer:%s:%d:%d", cycleKey, userID, bankAccountID)
}

// BuildBatchTransferIdempotencyKey 按需建批场景的幂等键（以批次号为作用域）
func BuildBatchTransferIdempotencyKey(batchNo string, userID, bankAccountID int64) string {
	return fmt.Sprintf("payout-batch:%s:%d:%d", batchNo, userID, bankAccountID)
}
