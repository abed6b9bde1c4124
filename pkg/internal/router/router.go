// Package router 管理路由配置，用于设置HTTP服务的路由规则.
// router 包只负责将路径和处理器绑定到 gin 引擎，处理器的实现由
// pkg/internal/handle 提供并注入进来.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/handle"
)

// RegisterAll 将全部业务路由组注册到传入的路由组.
// h 为 nil 时绑定返回 501 的占位实现，保证服务能启动并清晰提示未实现.
func RegisterAll(g *gin.RouterGroup, h *handle.Handlers) {
	if h == nil {
		g.Any("/*path", handle.DefaultHandler)
		return
	}

	RegisterOperationsRoutes(g, h)
	RegisterMarkerRoutes(g, h)
	RegisterHealthCheckRoute(g)
	RegisterSchedulerRoutes(g)
}
