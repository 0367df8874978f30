package model

import (
	"time"
)

// BankAccount 银行账户表
// 由用户侧 KYC 流程维护，本服务只读：建转账前校验账户仍然存在
type BankAccount struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	HolderName    string    `gorm:"type:varchar(128);not null" json:"holder_name"`
	AccountNumber string    `gorm:"type:varchar(32);not null" json:"account_number"`
	IFSC          string    `gorm:"type:varchar(16);not null" json:"ifsc"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BankAccount) TableName() string {
	return "bank_account"
}
