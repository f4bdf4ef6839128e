package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sshcollectorpro/switchreport/internal/database"
	"github.com/sshcollectorpro/switchreport/pkg/ssh"
)

// SchedulerInfo 调度器状态
type SchedulerInfo interface {
	Next() time.Time
}

// HealthHandler 健康检查
type HealthHandler struct {
	db        *gorm.DB
	pool      *ssh.Pool
	scheduler SchedulerInfo
}

// NewHealthHandler 创建健康检查处理器，pool 与 scheduler 可为 nil
func NewHealthHandler(db *gorm.DB, pool *ssh.Pool, scheduler SchedulerInfo) *HealthHandler {
	return &HealthHandler{db: db, pool: pool, scheduler: scheduler}
}

// Health 健康检查
// @Summary 健康检查
// @Tags system
// @Produce json
// @Success 200 {object} SuccessResponse "服务正常"
// @Failure 503 {object} ErrorResponse "数据库不可用"
// @Router /api/v1/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	if err := database.Health(h.db); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Code:    "SERVICE_UNAVAILABLE",
			Message: "数据库不可用: " + err.Error(),
		})
		return
	}

	data := gin.H{"database": "ok"}
	if h.pool != nil {
		data["ssh_pool"] = h.pool.Stats()
	}
	if h.scheduler != nil {
		if next := h.scheduler.Next(); !next.IsZero() {
			data["next_scheduled_run"] = next
		}
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "服务正常",
		Data:    data,
	})
}
