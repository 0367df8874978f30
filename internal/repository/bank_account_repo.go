package repository

import (
	"context"
	"errors"

	"payoutsystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrBankAccountNotFound = errors.New("银行账户不存在")
)

type BankAccountRepository struct {
	db *gorm.DB
}

func NewBankAccountRepository(db *gorm.DB) *BankAccountRepository {
	return &BankAccountRepository{db: db}
}

// GetByID 按 ID 查询银行账户
// 建转账前的防御性校验：付款记录选出来之后账户可能已被注销
func (r *BankAccountRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.BankAccount, error) {
	if tx == nil {
		tx = r.db
	}

	var account model.BankAccount
	err := tx.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBankAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}
