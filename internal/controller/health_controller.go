package controller

import (
	"context"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/logger"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StorageChecker 存储后端可用性
type StorageChecker interface {
	Check(ctx context.Context) error
}

type HealthController struct {
	DB      *gorm.DB
	Redis   *redis.Client
	Storage StorageChecker
}

func NewHealthController(db *gorm.DB, rdb *redis.Client, storage StorageChecker) *HealthController {
	return &HealthController{DB: db, Redis: rdb, Storage: storage}
}

// @Summary 健康检查
// @Description 检查数据库、Redis 与存储状态
// @Tags 系统
// @Produce json
// @Success 200 {object} util.Response
// @Failure 503 {object} util.Response
// @Router /health [get]
func (c *HealthController) HealthCheck(ctx *gin.Context) {
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	components := gin.H{}
	healthy := true

	// 检查数据库连接
	sqlDB, err := c.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(reqCtx)
	}
	if err != nil {
		healthy = false
		components["database"] = "down"
		logger.Log.Warn("database health check failed", zap.Error(err))
	} else {
		components["database"] = "up"
	}

	if c.Redis == nil {
		components["redis"] = "disabled"
	} else if err := c.Redis.Ping(reqCtx).Err(); err != nil {
		healthy = false
		components["redis"] = "down"
		logger.Log.Warn("redis health check failed", zap.Error(err))
	} else {
		components["redis"] = "up"
	}

	if c.Storage != nil {
		if err := c.Storage.Check(reqCtx); err != nil {
			healthy = false
			components["storage"] = "down"
			logger.Log.Warn("storage health check failed", zap.Error(err))
		} else {
			components["storage"] = "up"
		}
	}

	if !healthy {
		ctx.JSON(http.StatusServiceUnavailable, util.Response{
			Code:    http.StatusServiceUnavailable,
			Message: "degraded",
			Data:    gin.H{"status": "degraded", "components": components},
		})
		return
	}

	util.Success(ctx, gin.H{
		"status":     "ok",
		"components": components,
	})
}
