package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"payoutsystem/internal/config"
	"payoutsystem/internal/model"
	"payoutsystem/pkg/money"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存库
// cache=shared 让 gorm 连接池里的多个连接看到同一份数据
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.UserPayout{},
		&model.PayoutTransfer{},
		&model.PayoutBatch{},
		&model.BankAccount{},
		&model.OutboxMessage{},
	))

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				TransferCreated: "payout.transfer.created",
				BatchCreated:    "payout.batch.created",
			},
		},
		Business: config.BusinessConfig{
			MaxRetryCount: 3,
		},
	}
}

func seedBankAccount(t *testing.T, db *gorm.DB, id, userID int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.BankAccount{
		ID:            id,
		UserID:        userID,
		HolderName:    fmt.Sprintf("用户%d", userID),
		AccountNumber: fmt.Sprintf("10000000%04d", id),
		IFSC:          "HDFC0000001",
	}).Error)
}

// testNow 测试基准时刻：2025-08-27 10:00 IST（周三）
// 对应结算窗口 [08-18 00:00 IST, 08-25 00:00 IST)，cycleKey 2025-08-24
var testNow = time.Date(2025, 8, 27, 4, 30, 0, 0, time.UTC)

// payoutSeedTime 落在上述窗口内的付款创建时间基准
var payoutSeedTime = time.Date(2025, 8, 20, 12, 0, 0, 0, time.UTC)

// payoutSeedSeq 每次播种递增，保证 created_at 排序确定
var payoutSeedSeq int64

// seedPayout 写入一条 REQUESTED 付款记录，bankAccountID 为 0 表示未绑卡
func seedPayout(t *testing.T, db *gorm.DB, userID, bankAccountID, amountPaise int64) *model.UserPayout {
	t.Helper()

	payoutSeedSeq++
	p := &model.UserPayout{
		UserID:               userID,
		RequestedAmountPaise: *money.NewFromInt64(amountPaise),
		Status:               model.PayoutStatusRequested,
		CreatedAt:            payoutSeedTime.Add(time.Duration(payoutSeedSeq) * time.Second),
	}
	if bankAccountID != 0 {
		p.BankAccountID = &bankAccountID
	}
	require.NoError(t, db.Create(p).Error)
	return p
}
