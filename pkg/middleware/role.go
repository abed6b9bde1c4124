package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Role 请求主体的角色等级，数值越大权限越高.
// 访客（guest）是只读的外部协作者，不能触达管理接口.
type Role int

const (
	RoleGuest Role = iota + 1
	RoleUser
	RoleAdmin
)

// String 返回角色名.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleUser:
		return "user"
	case RoleGuest:
		fallthrough
	default:
		return "guest"
	}
}

type roleKey struct{}

// parseRole 解析角色头，未知或缺省按 user 处理（guest 需显式声明）.
func parseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	case "guest":
		return RoleGuest
	default:
		return RoleUser
	}
}

// RoleMiddleware 解析 X-Role 头并注入 gin.Context 与 request.Context，
// 供处理器和下游服务读取.
func RoleMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := parseRole(c.GetHeader("X-Role"))
		c.Set("role", r)

		ctx := context.WithValue(c.Request.Context(), roleKey{}, r)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetRole 取当前请求角色，gin context 未命中时回落到 request context.
func GetRole(c *gin.Context) Role {
	if v, ok := c.Get("role"); ok {
		if r, ok2 := v.(Role); ok2 {
			return r
		}
	}

	if v := c.Request.Context().Value(roleKey{}); v != nil {
		if r, ok := v.(Role); ok {
			return r
		}
	}

	return RoleUser
}

// RequireMinRole 低于 minRole 的请求以 403 拒绝.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) < minRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: insufficient role"})
			return
		}

		c.Next()
	}
}
