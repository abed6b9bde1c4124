package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/context"
	"github.com/yeisme/docvault/pkg/internal/storage"
)

// StorageMiddleware 把存储管理器注入 request context，
// 健康检查和处理器经 pkg/context 取 db/s3/mq/kv 客户端.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.WithStorageManager(c.Request.Context(), manager)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
