package handler

import (
	"payoutsystem/internal/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 放款相关，全部要求 SUPER 管理员
		payouts := api.Group("/payouts")
		payouts.Use(AdminAuthMiddleware(cfg))
		{
			payouts.POST("/transfers", h.CreateTransfers)

			payouts.GET("/batch", h.ListBatches)
			payouts.POST("/batch", h.CreateBatch)
			payouts.POST("/batch/create-batch", h.CreateBatchFromPayouts)

			payouts.GET("/user-payout", h.ListPayouts)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
