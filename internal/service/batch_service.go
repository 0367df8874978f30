package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"payoutsystem/internal/config"
	"payoutsystem/internal/model"
	"payoutsystem/internal/repository"
	"payoutsystem/pkg/cycle"
	"payoutsystem/pkg/idgen"
	"payoutsystem/pkg/money"

	"gorm.io/gorm"
)

var (
	ErrNoEligibleTransfers = errors.New("没有可入批的转账记录")
)

type BatchService struct {
	db           *gorm.DB
	cfg          *config.Config
	clock        cycle.Clock
	payoutRepo   *repository.PayoutRepository
	transferRepo *repository.TransferRepository
	batchRepo    *repository.BatchRepository
	bankRepo     *repository.BankAccountRepository
	outboxRepo   *repository.OutboxRepository
}

func NewBatchService(db *gorm.DB, cfg *config.Config, clock cycle.Clock) *BatchService {
	return &BatchService{
		db:           db,
		cfg:          cfg,
		clock:        clock,
		payoutRepo:   repository.NewPayoutRepository(db),
		transferRepo: repository.NewTransferRepository(db),
		batchRepo:    repository.NewBatchRepository(db),
		bankRepo:     repository.NewBankAccountRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

// CreateBatchInput 建批参数，全部可选
type CreateBatchInput struct {
	CycleKey string `json:"cycle_key"` // 只收该周期的转账
	Name     string `json:"name"`      // 自定义批次名
	Limit    int    `json:"limit"`     // 单批转账数上限
}

// CreateBatchResult 建批结果
type CreateBatchResult struct {
	Batch     *model.PayoutBatch      `json:"batch"`
	Transfers []*model.PayoutTransfer `json:"transfers"`
	Errors    []GroupError            `json:"errors,omitempty"`
}

// CreateBatch 把未入批的转账汇总成一个放款批次
//
// 【并发说明】选出转账和挂批之间没有锁，两个并发建批请求可能读到
// 重叠的转账集合。靠挂批时的条件更新（batch_id IS NULL + 行数比对）
// 兜底：后提交的一方整体回滚并报并发冲突，转账不会被放进两个批次
func (s *BatchService) CreateBatch(ctx context.Context, adminID int64, input *CreateBatchInput) (*CreateBatchResult, error) {
	limit := input.Limit
	if max := s.cfg.Business.MaxBatchTransfers; max > 0 && (limit <= 0 || limit > max) {
		limit = max
	}

	transfers, err := s.transferRepo.GetUnbatched(ctx, input.CycleKey, limit)
	if err != nil {
		return nil, fmt.Errorf("查询未入批转账失败: %w", err)
	}
	if len(transfers) == 0 {
		return nil, ErrNoEligibleTransfers
	}

	// big.Int 汇总批次总额
	total := money.Zero()
	transferIDs := make([]int64, 0, len(transfers))
	for _, t := range transfers {
		total.Add(&t.AmountPaise)
		transferIDs = append(transferIDs, t.ID)
	}

	name := input.Name
	if name == "" {
		name = fmt.Sprintf("Batch-%s", s.clock.Now().UTC().Format(time.RFC3339))
		if input.CycleKey != "" {
			name = name + "-" + input.CycleKey
		}
	}

	batch := &model.PayoutBatch{
		BatchNo:          idgen.GenerateBatchNo(),
		Name:             name,
		Status:           model.BatchStatusDraft,
		TotalAmountPaise: *total.Copy(),
		CreatedByID:      adminID,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.batchRepo.Create(ctx, tx, batch); err != nil {
			return fmt.Errorf("创建批次失败: %w", err)
		}

		attached, err := s.transferRepo.AttachToBatch(ctx, tx, transferIDs, batch.ID)
		if err != nil {
			return fmt.Errorf("转账挂批失败: %w", err)
		}
		if attached != int64(len(transferIDs)) {
			return repository.ErrConcurrencyConflict
		}

		return s.writeBatchEvent(ctx, tx, batch, len(transferIDs))
	})
	if err != nil {
		return nil, err
	}

	// 内存里同步挂批结果，避免回查
	for _, t := range transfers {
		batchID := batch.ID
		t.BatchID = &batchID
	}

	log.Printf("[BatchService] 批次创建成功: batchNo=%s, 转账 %d 笔, 总额 %s 派士",
		batch.BatchNo, len(transfers), batch.TotalAmountPaise.String())

	return &CreateBatchResult{Batch: batch, Transfers: transfers}, nil
}

// CreateBatchFromPayouts 按需建批：跳过周结算，直接把当前全部可结算
// 付款分组成转账并立即入批
//
// 流程：先落一个零总额的 DRAFT 批次，再逐分组在独立小事务里建转账
// （直接挂在该批次下）并认领付款。分组失败不打断循环；全军覆没时
// 把批次置为 CANCELLED
func (s *BatchService) CreateBatchFromPayouts(ctx context.Context, adminID int64) (*CreateBatchResult, error) {
	// 不限结算窗口，拉取全部可结算付款
	payouts, err := s.payoutRepo.GetEligible(ctx, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("查询可结算付款失败: %w", err)
	}
	if len(payouts) == 0 {
		return nil, ErrNoEligiblePayouts
	}

	groups := groupPayouts(payouts)
	if len(groups) == 0 {
		return nil, ErrNoEligiblePayouts
	}

	batch := &model.PayoutBatch{
		BatchNo:     idgen.GenerateBatchNo(),
		Name:        s.clock.Now().UTC().Format(time.RFC3339),
		Status:      model.BatchStatusDraft,
		CreatedByID: adminID,
	}
	if err := s.batchRepo.Create(ctx, nil, batch); err != nil {
		return nil, fmt.Errorf("创建批次失败: %w", err)
	}

	result := &CreateBatchResult{Batch: batch}
	batchTotal := money.Zero()

	for _, group := range groups {
		transfer, err := s.processBatchGroup(ctx, batch, group)
		if err != nil {
			log.Printf("[BatchService] 分组处理失败: user=%d, bankAccount=%d, err=%v",
				group.UserID, group.BankAccountID, err)
			result.Errors = append(result.Errors, GroupError{
				UserID:        group.UserID,
				BankAccountID: group.BankAccountID,
				Error:         err.Error(),
			})
			continue
		}
		result.Transfers = append(result.Transfers, transfer)
		batchTotal.Add(group.Total)
	}

	// 全部分组失败：批次作废，把失败清单带回给调用方
	if len(result.Transfers) == 0 {
		if err := s.batchRepo.UpdateStatus(ctx, nil, batch.ID, model.BatchStatusDraft, model.BatchStatusCancelled); err != nil {
			log.Printf("[BatchService] 批次作废失败: batchNo=%s, err=%v", batch.BatchNo, err)
		} else {
			batch.Status = model.BatchStatusCancelled
		}
		return result, ErrNoTransfersCreated
	}

	if err := s.batchRepo.UpdateTotal(ctx, nil, batch.ID, batchTotal); err != nil {
		return nil, fmt.Errorf("回填批次总额失败: %w", err)
	}
	batch.TotalAmountPaise = *batchTotal.Copy()

	log.Printf("[BatchService] 按需建批完成: batchNo=%s, 成功 %d 组, 失败 %d 组, 总额 %s 派士",
		batch.BatchNo, len(result.Transfers), len(result.Errors), batchTotal.String())

	return result, nil
}

// processBatchGroup 按需建批的单分组处理，镜像周结算的小事务结构，
// 区别在于转账创建即挂在预建批次下，幂等键以批次号为作用域
func (s *BatchService) processBatchGroup(ctx context.Context, batch *model.PayoutBatch, group *payoutGroup) (*model.PayoutTransfer, error) {
	var transfer *model.PayoutTransfer

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.bankRepo.GetByID(ctx, tx, group.BankAccountID); err != nil {
			return err
		}

		batchID := batch.ID
		t := &model.PayoutTransfer{
			TransferNo:     idgen.GenerateTransferNo(),
			IdempotencyKey: model.BuildBatchTransferIdempotencyKey(batch.BatchNo, group.UserID, group.BankAccountID),
			UserID:         group.UserID,
			BankAccountID:  group.BankAccountID,
			AmountPaise:    *group.Total.Copy(),
			Status:         model.PayoutStatusRequested,
			BatchID:        &batchID,
		}
		if err := s.transferRepo.Create(ctx, tx, t); err != nil {
			return fmt.Errorf("转账建单失败: %w", err)
		}

		claimed, err := s.payoutRepo.ClaimForTransfer(ctx, tx, group.PayoutIDs, t.ID)
		if err != nil {
			return fmt.Errorf("认领付款记录失败: %w", err)
		}
		if claimed != int64(len(group.PayoutIDs)) {
			return repository.ErrConcurrencyConflict
		}

		if err := s.writeTransferCreatedEvent(ctx, tx, t); err != nil {
			return fmt.Errorf("写入事件失败: %w", err)
		}

		transfer = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return transfer, nil
}

func (s *BatchService) writeTransferCreatedEvent(ctx context.Context, tx *gorm.DB, t *model.PayoutTransfer) error {
	payload := map[string]interface{}{
		"transfer_no":     t.TransferNo,
		"user_id":         t.UserID,
		"bank_account_id": t.BankAccountID,
		"amount_paise":    t.AmountPaise.String(),
		"status":          t.Status,
	}
	payloadBytes, _ := json.Marshal(payload)

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: t.TransferNo,
		Topic:      s.cfg.Kafka.Topic.TransferCreated,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

func (s *BatchService) writeBatchEvent(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch, transferCount int) error {
	payload := map[string]interface{}{
		"batch_no":           batch.BatchNo,
		"name":               batch.Name,
		"status":             batch.Status,
		"total_amount_paise": batch.TotalAmountPaise.String(),
		"transfer_count":     transferCount,
	}
	payloadBytes, _ := json.Marshal(payload)

	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: batch.BatchNo,
		Topic:      s.cfg.Kafka.Topic.BatchCreated,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	})
}

// ListBatches 分页查询批次（管理端列表）
func (s *BatchService) ListBatches(ctx context.Context, status, nameQuery string, page, pageSize int) ([]*model.PayoutBatch, int64, error) {
	return s.batchRepo.List(ctx, status, nameQuery, page, pageSize)
}
