package handler

import (
	"errors"
	"net/http"
	"strconv"

	"payoutsystem/internal/config"
	"payoutsystem/internal/repository"
	"payoutsystem/internal/service"
	"payoutsystem/pkg/cycle"
	"payoutsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	transferService *service.TransferService
	batchService    *service.BatchService
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, cfg *config.Config) *Handler {
	clock := cycle.SystemClock{}
	return &Handler{
		transferService: service.NewTransferService(db, cfg, clock),
		batchService:    service.NewBatchService(db, cfg, clock),
	}
}

// ============================================================
// 转账相关接口
// ============================================================

// CreateTransfers 触发本周期的转账建单
// POST /api/v1/payouts/transfers
//
// 部分分组失败仍算成功（201），失败清单在 errors 里；
// 没有可结算付款返回 400，全部分组失败返回 500
func (h *Handler) CreateTransfers(c *gin.Context) {
	result, err := h.transferService.RunWeeklyTransfers(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoEligiblePayouts):
			response.Error(c, http.StatusBadRequest, response.CodeNoEligiblePayouts, err.Error())
		case errors.Is(err, service.ErrNoTransfersCreated):
			response.ErrorWithData(c, http.StatusInternalServerError, response.CodeNoTransfersCreated,
				err.Error(), gin.H{"errors": result.Errors})
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Created(c, gin.H{
		"cycle_key":      result.CycleKey,
		"cycle_start":    result.CycleStart,
		"cycle_end":      result.CycleEnd,
		"transfer_count": len(result.Transfers),
		"transfers":      result.Transfers,
		"errors":         result.Errors,
	})
}

// ============================================================
// 批次相关接口
// ============================================================

// CreateBatchRequest 建批请求，参数全部可选
type CreateBatchRequest struct {
	CycleKey string `json:"cycle_key"`
	Name     string `json:"name"`
	Limit    int    `json:"limit"`
}

// CreateBatch 把未入批的转账汇总成放款批次
// POST /api/v1/payouts/batch
func (h *Handler) CreateBatch(c *gin.Context) {
	var req CreateBatchRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, "参数错误: "+err.Error())
			return
		}
	}

	adminID := c.GetInt64("admin_id")

	result, err := h.batchService.CreateBatch(c.Request.Context(), adminID, &service.CreateBatchInput{
		CycleKey: req.CycleKey,
		Name:     req.Name,
		Limit:    req.Limit,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoEligibleTransfers):
			response.Error(c, http.StatusBadRequest, response.CodeNoEligibleTransfers, err.Error())
		case errors.Is(err, repository.ErrConcurrencyConflict):
			response.Error(c, http.StatusConflict, response.CodeConcurrencyConflict, err.Error())
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Created(c, gin.H{
		"batch":          result.Batch,
		"transfer_count": len(result.Transfers),
		"transfers":      result.Transfers,
	})
}

// CreateBatchFromPayouts 按需建批：直接从付款记录生成转账并入批
// POST /api/v1/payouts/batch/create-batch
func (h *Handler) CreateBatchFromPayouts(c *gin.Context) {
	adminID := c.GetInt64("admin_id")

	result, err := h.batchService.CreateBatchFromPayouts(c.Request.Context(), adminID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoEligiblePayouts):
			response.Error(c, http.StatusBadRequest, response.CodeNoEligiblePayouts, err.Error())
		case errors.Is(err, service.ErrNoTransfersCreated):
			// 批次已作废，把失败清单带回去
			response.ErrorWithData(c, http.StatusInternalServerError, response.CodeNoTransfersCreated,
				err.Error(), gin.H{"batch": result.Batch, "errors": result.Errors})
		default:
			response.ServerError(c, err.Error())
		}
		return
	}

	response.Created(c, gin.H{
		"batch":     result.Batch,
		"transfers": result.Transfers,
		"errors":    result.Errors,
	})
}

// ListBatches 批次列表
// GET /api/v1/payouts/batch?page=1&limit=20&status=DRAFT&q=xxx
func (h *Handler) ListBatches(c *gin.Context) {
	page, pageSize := parsePageParams(c)
	status := c.Query("status")
	nameQuery := c.Query("q")

	batches, total, err := h.batchService.ListBatches(c.Request.Context(), status, nameQuery, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"page":  page,
		"limit": pageSize,
		"total": total,
		"items": batches,
	})
}

// ListPayouts 付款记录列表
// GET /api/v1/payouts/user-payout?page=1&limit=20&status=REQUESTED
func (h *Handler) ListPayouts(c *gin.Context) {
	page, pageSize := parsePageParams(c)
	status := c.Query("status")

	payouts, total, err := h.transferService.ListPayouts(c.Request.Context(), status, page, pageSize)
	if err != nil {
		response.ServerError(c, err.Error())
		return
	}

	response.Success(c, gin.H{
		"page":  page,
		"limit": pageSize,
		"total": total,
		"items": payouts,
	})
}

// parsePageParams 解析分页参数，page >= 1，limit 限制在 1-100
func parsePageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
