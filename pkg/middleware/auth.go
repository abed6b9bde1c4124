package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/configs"
)

// AuthMiddleware 统一身份校验. 服务部署在 oauth2-proxy 之后，
// 身份由代理注入的请求头携带：
//   - X-Auth-Request-Email / X-Forwarded-Email 二选一
//   - 配置的路径前缀（/metrics、/health 等）直接放行
//   - 开发模式下可用 query user 兜底（configs.auth.dev_allow_query）
//
// 解析出的邮箱写入 gin context（键 auth_email），处理器无需重复读头.
func AuthMiddleware(conf configs.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !conf.Enabled || skippedPath(c.Request.URL.Path, conf.SkipPaths) {
			c.Next()
			return
		}

		email := strings.TrimSpace(c.GetHeader("X-Auth-Request-Email"))
		if email == "" {
			email = strings.TrimSpace(c.GetHeader("X-Forwarded-Email"))
		}

		if email == "" {
			if conf.DevAllowQuery && c.Query("user") != "" {
				c.Set("auth_email", c.Query("user"))
				c.Next()

				return
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})

			return
		}

		c.Set("auth_email", email)
		c.Next()
	}
}

// skippedPath 路径是否命中放行前缀.
func skippedPath(path string, skips []string) bool {
	for _, p := range skips {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
