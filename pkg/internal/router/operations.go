package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/handle"
)

// RegisterOperationsRoutes 注册批量操作相关路由.
func RegisterOperationsRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	opsRoutes := g.Group("/operations")
	{
		// 提交批量操作（下载打包/移动/复制/删除/标记已读）
		opsRoutes.POST("", h.SubmitOperation)

		singleGroup := opsRoutes.Group("/:id")
		{
			// 轮询任务快照
			singleGroup.GET("", h.PollOperation)
			// 协作式取消
			singleGroup.POST("/cancel", h.CancelOperation)
			// 确认取走结果，释放任务记录
			singleGroup.POST("/finish", h.FinishOperation)
			// 取回打包下载产物（单次取用）
			singleGroup.GET("/archive", h.FetchArchive)
		}
	}
}
