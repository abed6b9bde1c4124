// Package api 定义 HTTP API 的对外注册入口.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/handle"
	"github.com/yeisme/docvault/pkg/internal/router"
)

// RegisterGroup 注册 /api/v1 路由组到传入的 gin 引擎.
func RegisterGroup(e *gin.Engine, h *handle.Handlers) *gin.Engine {
	router.RegisterAll(e.Group("/api/v1"), h)

	return e
}
