package handler

import (
	"log"
	"strings"
	"time"

	"payoutsystem/internal/config"
	"payoutsystem/pkg/response"

	"github.com/gin-gonic/gin"
)

// RoleSuper 放款操作要求的管理员角色
const RoleSuper = "SUPER"

// LoggerMiddleware 日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		// 记录日志
		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %v", err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AdminAuthMiddleware 管理端鉴权中间件
//
// 登录和会话由管理端网关负责，到达本服务的请求只带静态令牌。
// 无令牌/令牌不识别返回 401，角色不够返回 403。
// 校验通过后把管理员 ID 放进上下文，建批时记录操作人
func AdminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	// 启动时建索引，避免每个请求线性扫配置
	admins := make(map[string]config.AdminCredential, len(cfg.Auth.Admins))
	for _, a := range cfg.Auth.Admins {
		admins[a.Token] = a
	}

	return func(c *gin.Context) {
		token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			response.Unauthorized(c, "缺少访问令牌")
			c.Abort()
			return
		}

		admin, ok := admins[token]
		if !ok {
			response.Unauthorized(c, "访问令牌无效")
			c.Abort()
			return
		}

		if admin.Role != RoleSuper {
			response.Forbidden(c, "权限不足")
			c.Abort()
			return
		}

		c.Set("admin_id", admin.ID)
		c.Next()
	}
}
