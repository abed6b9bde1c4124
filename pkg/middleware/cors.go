package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/configs"
)

// CORSMiddleware 跨域配置. 服务通常在同源反向代理之后，
// 宽松的默认值主要方便本地前端联调.
func CORSMiddleware(cfg configs.ServerConfig) gin.HandlerFunc {
	config := cors.DefaultConfig()

	config.AllowWebSockets = true
	config.AllowFiles = true

	if cfg.Debug {
		// AllowAllOrigins 与显式列表互斥，debug 下只开前者
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = []string{"*"}
	}

	return cors.New(config)
}
