package model

import (
	"time"

	"payoutsystem/pkg/money"
)

const (
	PayoutStatusRequested = "REQUESTED"
	PayoutStatusApproved  = "APPROVED"
	PayoutStatusRejected  = "REJECTED"
	PayoutStatusPaid      = "PAID"
)

// UserPayout 用户付款记录表
// 由推荐/分润子系统写入，本服务只做"认领"：把符合条件的付款记录
// 归并到一笔转账上（设置 transfer_id 并推进状态）
//
// 【重要】认领约束：
// 1. 一条付款记录至多归属一笔转账
// 2. 认领必须带条件更新（transfer_id IS NULL AND status = REQUESTED），
//    靠影响行数判断是否被并发任务抢先 —— 见 PayoutRepository.ClaimForTransfer
type UserPayout struct {
	ID                   int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID               int64         `gorm:"index;not null" json:"user_id"`
	BankAccountID        *int64        `gorm:"index" json:"bank_account_id"`                               // 关联银行账户，NULL 表示未绑卡，不可结算
	RequestedAmountPaise money.Amount  `gorm:"type:decimal(65,0);not null" json:"requested_amount_paise"`  // 申请金额（派士）
	ApprovedAmountPaise  *money.Amount `gorm:"type:decimal(65,0)" json:"approved_amount_paise"`            // 审批金额，NULL 表示未单独核定
	Status               string        `gorm:"type:varchar(20);index;not null" json:"status"`
	TransferID           *int64        `gorm:"index" json:"transfer_id"` // 归属的转账，NULL 表示未认领
	Remark               string        `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt            time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserPayout) TableName() string {
	return "user_payout"
}

// EffectiveAmountPaise 结算口径金额：审批金额优先，否则按申请金额
// 返回副本，调用方可以安全累加
func (p *UserPayout) EffectiveAmountPaise() *money.Amount {
	if p.ApprovedAmountPaise != nil {
		return p.ApprovedAmountPaise.Copy()
	}
	return p.RequestedAmountPaise.Copy()
}
