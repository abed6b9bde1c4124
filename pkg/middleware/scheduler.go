package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/scheduler"
)

type schedulerKey struct{}

// SchedulerMiddleware 把调度器注入 request context，
// 管理接口用它查看和触发定时清理任务.
func SchedulerMiddleware(sched *scheduler.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithValue(c.Request.Context(), schedulerKey{}, sched)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetScheduler 从 context 取调度器，未注入时返回 nil.
func GetScheduler(c *gin.Context) *scheduler.Scheduler {
	if sched, ok := c.Request.Context().Value(schedulerKey{}).(*scheduler.Scheduler); ok {
		return sched
	}

	return nil
}
