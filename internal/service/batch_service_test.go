package service

import (
	"context"
	"strings"
	"testing"

	"payoutsystem/internal/model"
	"payoutsystem/internal/repository"
	"payoutsystem/pkg/cycle"
	"payoutsystem/pkg/idgen"
	"payoutsystem/pkg/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// seedTransfer 写入一笔未入批的 REQUESTED 转账
func seedTransfer(t *testing.T, db *gorm.DB, userID, bankAccountID, amountPaise int64, cycleKey string) *model.PayoutTransfer {
	t.Helper()

	tr := &model.PayoutTransfer{
		TransferNo:     idgen.GenerateTransferNo(),
		IdempotencyKey: model.BuildTransferIdempotencyKey(cycleKey, userID, bankAccountID),
		UserID:         userID,
		BankAccountID:  bankAccountID,
		AmountPaise:    *money.NewFromInt64(amountPaise),
		Status:         model.PayoutStatusRequested,
		CycleKey:       cycleKey,
	}
	require.NoError(t, db.Create(tr).Error)
	return tr
}

func TestCreateBatch_CollectsUnbatchedTransfers(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	seedTransfer(t, db, 1, 101, 1000, "2025-08-24")
	seedTransfer(t, db, 2, 102, 2000, "2025-08-24")
	seedTransfer(t, db, 3, 103, 3000, "2025-08-24")

	result, err := svc.CreateBatch(ctx, 42, &CreateBatchInput{})
	require.NoError(t, err)
	require.NotNil(t, result.Batch)
	require.Len(t, result.Transfers, 3)

	batch := result.Batch
	assert.Equal(t, model.BatchStatusDraft, batch.Status)
	assert.Equal(t, int64(42), batch.CreatedByID)
	assert.True(t, strings.HasPrefix(batch.BatchNo, "BAT"))
	assert.True(t, strings.HasPrefix(batch.Name, "Batch-"))

	// 批次总额 = 成员转账金额之和
	assert.Equal(t, "6000", batch.TotalAmountPaise.String())

	// 全部转账已挂批（库里和返回值都要对）
	var stored []*model.PayoutTransfer
	require.NoError(t, db.Where("batch_id = ?", batch.ID).Find(&stored).Error)
	assert.Len(t, stored, 3)
	for _, tr := range result.Transfers {
		require.NotNil(t, tr.BatchID)
		assert.Equal(t, batch.ID, *tr.BatchID)
	}

	// 批次创建事件入发件箱
	var messages []*model.OutboxMessage
	require.NoError(t, db.Where("topic = ?", "payout.batch.created").Find(&messages).Error)
	require.Len(t, messages, 1)
	assert.Equal(t, batch.BatchNo, messages[0].MessageKey)
	assert.Equal(t, model.OutboxStatusPending, messages[0].Status)
}

func TestCreateBatch_CycleKeyFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	seedTransfer(t, db, 1, 101, 1000, "2025-08-24")
	seedTransfer(t, db, 2, 102, 2000, "2025-08-24")
	other := seedTransfer(t, db, 3, 103, 3000, "2025-08-31")

	result, err := svc.CreateBatch(ctx, 42, &CreateBatchInput{CycleKey: "2025-08-24"})
	require.NoError(t, err)
	require.Len(t, result.Transfers, 2)
	assert.Equal(t, "3000", result.Batch.TotalAmountPaise.String())
	assert.True(t, strings.HasSuffix(result.Batch.Name, "-2025-08-24"))

	// 其他周期的转账不受影响
	var reloaded model.PayoutTransfer
	require.NoError(t, db.First(&reloaded, other.ID).Error)
	assert.Nil(t, reloaded.BatchID)
}

func TestCreateBatch_RespectsLimitAndCap(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.Business.MaxBatchTransfers = 2
	svc := NewBatchService(db, cfg, cycle.NewFakeClock(testNow))
	ctx := context.Background()

	seedTransfer(t, db, 1, 101, 1000, "2025-08-24")
	seedTransfer(t, db, 2, 102, 2000, "2025-08-24")
	seedTransfer(t, db, 3, 103, 3000, "2025-08-24")

	// limit 超过配置上限时按上限截断
	result, err := svc.CreateBatch(ctx, 42, &CreateBatchInput{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, result.Transfers, 2)

	// 显式 limit 在上限内时按 limit 截断
	result, err = svc.CreateBatch(ctx, 42, &CreateBatchInput{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Transfers, 1)
}

func TestCreateBatch_NoEligibleTransfers(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	// 空库
	_, err := svc.CreateBatch(ctx, 42, &CreateBatchInput{})
	require.ErrorIs(t, err, ErrNoEligibleTransfers)

	// 已全部入批
	tr := seedTransfer(t, db, 1, 101, 1000, "2025-08-24")
	require.NoError(t, db.Model(tr).Update("batch_id", 777).Error)

	_, err = svc.CreateBatch(ctx, 42, &CreateBatchInput{})
	require.ErrorIs(t, err, ErrNoEligibleTransfers)

	// 没有落下任何批次记录
	var count int64
	require.NoError(t, db.Model(&model.PayoutBatch{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAttachToBatch_OnlyClaimsUnbatchedRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := repository.NewTransferRepository(db)

	t1 := seedTransfer(t, db, 1, 101, 1000, "2025-08-24")
	t2 := seedTransfer(t, db, 2, 102, 2000, "2025-08-24")
	require.NoError(t, db.Model(t2).Update("batch_id", 777).Error)

	// 并发建批兜底：已挂批的行不会被再次挂批，影响行数少于期望
	attached, err := repo.AttachToBatch(ctx, nil, []int64{t1.ID, t2.ID}, 888)
	require.NoError(t, err)
	assert.Equal(t, int64(1), attached)

	var reloaded model.PayoutTransfer
	require.NoError(t, db.First(&reloaded, t2.ID).Error)
	require.NotNil(t, reloaded.BatchID)
	assert.Equal(t, int64(777), *reloaded.BatchID)
}

func TestCreateBatchFromPayouts_GroupsAndAttaches(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	seedBankAccount(t, db, 101, 1)
	seedBankAccount(t, db, 102, 2)
	seedPayout(t, db, 1, 101, 1000)
	seedPayout(t, db, 1, 101, 2000)
	seedPayout(t, db, 2, 102, 5000)

	result, err := svc.CreateBatchFromPayouts(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, result.Batch)
	require.Len(t, result.Transfers, 2)
	assert.Empty(t, result.Errors)

	batch := result.Batch
	assert.Equal(t, model.BatchStatusDraft, batch.Status)
	assert.Equal(t, "8000", batch.TotalAmountPaise.String())

	// 转账创建即挂在批次下，幂等键以批次号为作用域
	t1 := result.Transfers[0]
	require.NotNil(t, t1.BatchID)
	assert.Equal(t, batch.ID, *t1.BatchID)
	assert.Equal(t, model.BuildBatchTransferIdempotencyKey(batch.BatchNo, 1, 101), t1.IdempotencyKey)
	assert.Equal(t, "3000", t1.AmountPaise.String())
	assert.Empty(t, t1.CycleKey)

	// 付款记录全部被认领
	var unclaimed int64
	require.NoError(t, db.Model(&model.UserPayout{}).
		Where("transfer_id IS NULL").Count(&unclaimed).Error)
	assert.Equal(t, int64(0), unclaimed)

	// 批次总额与库里成员转账之和一致
	total := money.Zero()
	var members []*model.PayoutTransfer
	require.NoError(t, db.Where("batch_id = ?", batch.ID).Find(&members).Error)
	for _, m := range members {
		total.Add(&m.AmountPaise)
	}
	var storedBatch model.PayoutBatch
	require.NoError(t, db.First(&storedBatch, batch.ID).Error)
	assert.Equal(t, total.String(), storedBatch.TotalAmountPaise.String())
}

func TestCreateBatchFromPayouts_PartialFailure(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	seedBankAccount(t, db, 101, 1)
	seedPayout(t, db, 1, 101, 1000)
	badPayout := seedPayout(t, db, 2, 999, 5000) // 银行账户不存在

	result, err := svc.CreateBatchFromPayouts(ctx, 42)
	require.NoError(t, err)
	require.Len(t, result.Transfers, 1)
	require.Len(t, result.Errors, 1)

	// 失败分组不计入批次总额
	assert.Equal(t, "1000", result.Batch.TotalAmountPaise.String())
	assert.Equal(t, int64(2), result.Errors[0].UserID)

	var p model.UserPayout
	require.NoError(t, db.First(&p, badPayout.ID).Error)
	assert.Equal(t, model.PayoutStatusRequested, p.Status)
	assert.Nil(t, p.TransferID)
}

func TestCreateBatchFromPayouts_AllGroupsFailCancelsBatch(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	// 全部付款的银行账户都不存在
	seedPayout(t, db, 1, 998, 1000)
	seedPayout(t, db, 2, 999, 2000)

	result, err := svc.CreateBatchFromPayouts(ctx, 42)
	require.ErrorIs(t, err, ErrNoTransfersCreated)
	require.NotNil(t, result)
	require.NotNil(t, result.Batch)
	assert.Len(t, result.Errors, 2)

	// 空批次作废
	var stored model.PayoutBatch
	require.NoError(t, db.First(&stored, result.Batch.ID).Error)
	assert.Equal(t, model.BatchStatusCancelled, stored.Status)
}

func TestCreateBatchFromPayouts_NoEligiblePayouts(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	_, err := svc.CreateBatchFromPayouts(ctx, 42)
	require.ErrorIs(t, err, ErrNoEligiblePayouts)
}

func TestListBatches_StatusAndNameFilter(t *testing.T) {
	db := newTestDB(t)
	svc := NewBatchService(db, newTestConfig(), cycle.NewFakeClock(testNow))
	ctx := context.Background()

	require.NoError(t, db.Create(&model.PayoutBatch{
		BatchNo: idgen.GenerateBatchNo(), Name: "Weekly-2025-08-24",
		Status: model.BatchStatusDraft, CreatedByID: 1,
	}).Error)
	require.NoError(t, db.Create(&model.PayoutBatch{
		BatchNo: idgen.GenerateBatchNo(), Name: "Manual-Adjustment",
		Status: model.BatchStatusPosted, CreatedByID: 1,
	}).Error)

	batches, total, err := svc.ListBatches(ctx, model.BatchStatusDraft, "", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, batches, 1)
	assert.Equal(t, "Weekly-2025-08-24", batches[0].Name)

	batches, total, err = svc.ListBatches(ctx, "", "Manual", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, batches, 1)
	assert.Equal(t, "Manual-Adjustment", batches[0].Name)
}
