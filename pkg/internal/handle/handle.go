// Package handle 实现 HTTP 处理器：批量操作、未读标记与健康检查.
package handle

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/docvault/pkg/internal/blob"
	"github.com/yeisme/docvault/pkg/internal/fileops"
	"github.com/yeisme/docvault/pkg/internal/marker"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/tree"
	"github.com/yeisme/docvault/pkg/rule"
)

func DefaultHandler(c *gin.Context) {
	c.JSON(http.StatusNotImplemented, gin.H{"message": "Not Implemented"})
}

// Handlers 聚合请求处理器依赖：操作引擎、标记引擎、内容存储与树访问.
// 由应用层在启动时构造注入.
type Handlers struct {
	Ops   *fileops.Engine
	Marks *marker.Engine
	Blobs blob.Store
	Tree  tree.Accessor
}

// NewHandlers 构造 Handlers.
func NewHandlers(ops *fileops.Engine, marks *marker.Engine, blobs blob.Store, t tree.Accessor) *Handlers {
	return &Handlers{Ops: ops, Marks: marks, Blobs: blobs, Tree: t}
}

func checkUser(c *gin.Context) (string, error) {
	// 提取用户：oauth2-proxy 注入头优先 -> query 参数 -> 测试默认值
	user := c.GetHeader("X-Auth-Request-Email")
	if user == "" {
		user = c.GetHeader("X-Forwarded-Email")
	}

	if user == "" {
		user = c.Query("user")
	}

	if user == "" && gin.Mode() != gin.ReleaseMode {
		user = "test-user@example.com"
	}

	user = strings.TrimSpace(user)

	if err := rule.ValidateVar(user, "required,email"); err != nil {
		return "", err
	}

	return user, nil
}

// principal 按请求头构造主体：语言环境取 Accept-Language 首选项，
// 管理员标记取角色头.
func principal(c *gin.Context) (security.Principal, error) {
	user, err := checkUser(c)
	if err != nil {
		return security.Principal{}, err
	}

	locale := c.GetHeader("Accept-Language")
	if i := strings.IndexAny(locale, ",;"); i > 0 {
		locale = locale[:i]
	}

	admin := strings.EqualFold(strings.TrimSpace(c.GetHeader("X-Role")), "admin")

	return security.Principal{ID: user, Locale: locale, Admin: admin}, nil
}

// respondErr 统一错误响应：按哨兵映射状态码.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fileops.ErrJobNotFound), errors.Is(err, fileops.ErrNotFound),
		errors.Is(err, tree.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, fileops.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
