package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"payoutsystem/internal/config"
	"payoutsystem/internal/infrastructure/lock"
	"payoutsystem/internal/service"
	"payoutsystem/pkg/cycle"
	"payoutsystem/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// TransferCycleJob 周结算后台任务
//
// 按固定间隔巡检，每轮先抢分布式锁再跑结算循环 —— 多实例部署时
// 只有一个实例真正执行。转账建单是幂等的（周期幂等键 + 条件认领），
// 同一周期内反复触发只会刷新转账，不会重复建单，所以巡检间隔
// 不需要和周期边界严格对齐
type TransferCycleJob struct {
	db          *gorm.DB
	redisClient *redis.Client
	cfg         *config.Config
	svc         *service.TransferService
	stopCh      chan struct{}
	interval    time.Duration
}

func NewTransferCycleJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *TransferCycleJob {
	interval := time.Duration(cfg.Business.TransferRunIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}

	return &TransferCycleJob{
		db:          db,
		redisClient: redisClient,
		cfg:         cfg,
		svc:         service.NewTransferService(db, cfg, cycle.SystemClock{}),
		stopCh:      make(chan struct{}),
		interval:    interval,
	}
}

func (j *TransferCycleJob) Start(ctx context.Context) {
	log.Println("[TransferCycleJob] 周结算任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[TransferCycleJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[TransferCycleJob] 任务停止")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *TransferCycleJob) Stop() {
	close(j.stopCh)
}

func (j *TransferCycleJob) runOnce(ctx context.Context) {
	// holder 标识本实例，避免误删别的实例的锁
	holder := fmt.Sprintf("transfer-cycle-%d", idgen.NextID())
	runLock := lock.NewTransferRunLock(j.redisClient, holder)

	ok, err := runLock.TryLock(ctx)
	if err != nil {
		log.Printf("[TransferCycleJob] 获取锁失败: %v", err)
		return
	}
	if !ok {
		// 其他实例正在执行本轮结算
		return
	}
	defer runLock.Unlock(ctx)

	result, err := j.svc.RunWeeklyTransfers(ctx)
	if err != nil {
		if errors.Is(err, service.ErrNoEligiblePayouts) {
			// 本轮无事可做，不算故障
			return
		}
		log.Printf("[TransferCycleJob] 结算执行失败: %v", err)
		return
	}

	log.Printf("[TransferCycleJob] 周期 %s: 成功 %d 组, 失败 %d 组",
		result.CycleKey, len(result.Transfers), len(result.Errors))
}
