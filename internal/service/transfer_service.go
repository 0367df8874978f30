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

	"gorm.io/gorm"
)

var (
	ErrNoEligiblePayouts  = errors.New("没有可结算的付款记录")
	ErrNoTransfersCreated = errors.New("没有任何分组处理成功")
)

// GroupError 单个分组的失败信息，按（用户, 银行账户）定位
type GroupError struct {
	UserID        int64  `json:"user_id"`
	BankAccountID int64  `json:"bank_account_id"`
	Error         string `json:"error"`
}

// TransferRunResult 一轮周结算的执行结果
// 部分分组失败是正常结果：成功的转账和失败清单一起返回
type TransferRunResult struct {
	CycleKey   string                  `json:"cycle_key"`
	CycleStart time.Time               `json:"cycle_start"`
	CycleEnd   time.Time               `json:"cycle_end"`
	Transfers  []*model.PayoutTransfer `json:"transfers"`
	Errors     []GroupError            `json:"errors"`
}

type TransferService struct {
	db           *gorm.DB
	cfg          *config.Config
	clock        cycle.Clock
	payoutRepo   *repository.PayoutRepository
	transferRepo *repository.TransferRepository
	bankRepo     *repository.BankAccountRepository
	outboxRepo   *repository.OutboxRepository
}

func NewTransferService(db *gorm.DB, cfg *config.Config, clock cycle.Clock) *TransferService {
	return &TransferService{
		db:           db,
		cfg:          cfg,
		clock:        clock,
		payoutRepo:   repository.NewPayoutRepository(db),
		transferRepo: repository.NewTransferRepository(db),
		bankRepo:     repository.NewBankAccountRepository(db),
		outboxRepo:   repository.NewOutboxRepository(db),
	}
}

// RunWeeklyTransfers 周结算主流程
//
// 选出窗口内可结算的付款记录 -> 按（用户, 银行账户）分组 ->
// 逐组在独立小事务里建转账并认领付款。
//
// 【重要】事务边界是"一个分组"而不是"整轮"：某个分组失败
// （银行账户已注销、被并发任务抢先认领）只回滚该分组，
// 其他分组的成果保留。这是刻意放弃整轮原子性换部分成功语义
func (s *TransferService) RunWeeklyTransfers(ctx context.Context) (*TransferRunResult, error) {
	window := cycle.WeekWindow(s.clock.Now())

	result := &TransferRunResult{
		CycleKey:   window.Key,
		CycleStart: window.Start,
		CycleEnd:   window.End,
	}

	payouts, err := s.payoutRepo.GetEligible(ctx, window.End)
	if err != nil {
		return nil, fmt.Errorf("查询可结算付款失败: %w", err)
	}
	if len(payouts) == 0 {
		return result, ErrNoEligiblePayouts
	}

	groups := groupPayouts(payouts)
	if len(groups) == 0 {
		return result, ErrNoEligiblePayouts
	}

	log.Printf("[TransferService] 周期 %s: %d 条付款记录归并为 %d 个分组",
		window.Key, len(payouts), len(groups))

	for _, group := range groups {
		transfer, err := s.processGroup(ctx, window, group)
		if err != nil {
			// 失败的分组记入清单，继续处理下一组
			log.Printf("[TransferService] 分组处理失败: user=%d, bankAccount=%d, err=%v",
				group.UserID, group.BankAccountID, err)
			result.Errors = append(result.Errors, GroupError{
				UserID:        group.UserID,
				BankAccountID: group.BankAccountID,
				Error:         err.Error(),
			})
			continue
		}
		result.Transfers = append(result.Transfers, transfer)
	}

	if len(result.Transfers) == 0 {
		return result, ErrNoTransfersCreated
	}

	log.Printf("[TransferService] 周期 %s 结算完成: 成功 %d 组, 失败 %d 组",
		window.Key, len(result.Transfers), len(result.Errors))
	return result, nil
}

// processGroup 处理单个分组：一个事务内完成校验、建单/更新、认领
func (s *TransferService) processGroup(ctx context.Context, window cycle.Window, group *payoutGroup) (*model.PayoutTransfer, error) {
	idempotencyKey := model.BuildTransferIdempotencyKey(window.Key, group.UserID, group.BankAccountID)

	var transfer *model.PayoutTransfer

	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 防御性校验：付款记录选出来之后银行账户可能已被注销
		if _, err := s.bankRepo.GetByID(ctx, tx, group.BankAccountID); err != nil {
			return err
		}

		// 幂等建单：键已存在则只刷新金额和结算窗口
		cycleStart := window.Start
		cycleEnd := window.End
		t, err := s.transferRepo.UpsertByIdempotencyKey(ctx, tx, &model.PayoutTransfer{
			TransferNo:     idgen.GenerateTransferNo(),
			IdempotencyKey: idempotencyKey,
			UserID:         group.UserID,
			BankAccountID:  group.BankAccountID,
			AmountPaise:    *group.Total.Copy(),
			Status:         model.PayoutStatusRequested,
			CycleKey:       window.Key,
			CycleStart:     &cycleStart,
			CycleEnd:       &cycleEnd,
		})
		if err != nil {
			return fmt.Errorf("转账建单失败: %w", err)
		}

		// 条件认领：影响行数少于期望说明有并发任务抢先，整组回滚
		claimed, err := s.payoutRepo.ClaimForTransfer(ctx, tx, group.PayoutIDs, t.ID)
		if err != nil {
			return fmt.Errorf("认领付款记录失败: %w", err)
		}
		if claimed != int64(len(group.PayoutIDs)) {
			return repository.ErrConcurrencyConflict
		}

		if err := s.writeTransferEvent(ctx, tx, t); err != nil {
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

// writeTransferEvent 转账事件写入发件箱（与业务同事务）
func (s *TransferService) writeTransferEvent(ctx context.Context, tx *gorm.DB, t *model.PayoutTransfer) error {
	payload := map[string]interface{}{
		"transfer_no":     t.TransferNo,
		"user_id":         t.UserID,
		"bank_account_id": t.BankAccountID,
		"amount_paise":    t.AmountPaise.String(),
		"cycle_key":       t.CycleKey,
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

// ListPayouts 分页查询付款记录（管理端列表）
func (s *TransferService) ListPayouts(ctx context.Context, status string, page, pageSize int) ([]*model.UserPayout, int64, error) {
	return s.payoutRepo.List(ctx, status, page, pageSize)
}
