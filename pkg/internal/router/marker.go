package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/handle"
)

// RegisterMarkerRoutes 注册"新条目"标记相关路由.
func RegisterMarkerRoutes(g *gin.RouterGroup, h *handle.Handlers) {
	markRoutes := g.Group("/marks")
	{
		// 打标记（异步，入队即返回）
		markRoutes.POST("", h.MarkNew)
		// 清标记（同步，返回后计数已更新）
		markRoutes.DELETE("", h.RemoveNew)
		// 四个根桶的未读计数
		markRoutes.GET("/counts", h.NewCounts)
		// 列出文件夹子树内的"新"条目
		markRoutes.GET("/folders/:id", h.ListNew)
	}
}
