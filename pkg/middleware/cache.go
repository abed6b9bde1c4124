package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/docvault/pkg/cache"
)

const (
	// DefaultMaxBodyBytes 超过该体积的响应不缓存. 归档取回接口
	// 流式返回压缩包，靠这个上限天然绕过缓存.
	DefaultMaxBodyBytes = 1 << 20

	defaultCacheTTL = 30 * time.Second
	cacheKeyPrefix  = "dv:resp:"
)

// CacheConfig 响应缓存配置. 服务里用于健康探针这类幂等且
// 允许短暂陈旧的 GET 接口；未读计数的缓存在标记引擎内部做，
// 不走这一层.
type CacheConfig struct {
	Cache *appcache.Cache // 必填，底层 KV 由存储管理器注入
	TTL   time.Duration

	Methods     []string // 允许缓存的方法，默认 GET/HEAD
	StatusCodes []int    // 允许缓存的状态码，默认 200

	KeyFunc     func(*gin.Context) string
	Skipper     func(*gin.Context) bool // 返回 true 跳过缓存
	VaryHeaders []string                // 参与键的请求头

	BypassHeader string // 请求带该头（任意值）时强制回源，默认 X-Cache-Bypass
	MaxBodyBytes int    // 0 表示不限制
}

// DefaultCacheConfig 默认配置. 身份头参与键，认证代理后面
// 不同用户的响应不会互相串.
func DefaultCacheConfig(c *appcache.Cache) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          defaultCacheTTL,
		Methods:      []string{http.MethodGet, http.MethodHead},
		StatusCodes:  []int{http.StatusOK},
		VaryHeaders:  []string{"X-Auth-Request-Email"},
		BypassHeader: "X-Cache-Bypass",
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// CacheMiddleware 响应缓存：命中直接回放（带 X-Cache/Age/ETag，
// 支持 If-None-Match 304），未命中则捕获响应体存入 KV.
// 写缓存失败只丢缓存，不影响响应. 含 no-store/private 的响应不缓存.
//
//	probeCache := middleware.DefaultCacheConfig(kvCache)
//	probeCache.TTL = 5 * time.Second
//	probeCache.Skipper = func(c *gin.Context) bool {
//	    return !strings.HasPrefix(c.Request.URL.Path, "/api/v1/health")
//	}
//	engine.Use(middleware.CacheMiddleware(probeCache))
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: Cache cannot be nil")
	}

	if len(cfg.Methods) == 0 {
		cfg.Methods = []string{http.MethodGet, http.MethodHead}
	}

	if len(cfg.StatusCodes) == 0 {
		cfg.StatusCodes = []int{http.StatusOK}
	}

	if cfg.BypassHeader == "" {
		cfg.BypassHeader = "X-Cache-Bypass"
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return responseCacheKey(c, cfg.VaryHeaders) }
	}

	cacheableMethod := make(map[string]bool, len(cfg.Methods))
	for _, m := range cfg.Methods {
		cacheableMethod[strings.ToUpper(m)] = true
	}

	cacheableStatus := make(map[int]bool, len(cfg.StatusCodes))
	for _, s := range cfg.StatusCodes {
		cacheableStatus[s] = true
	}

	return func(c *gin.Context) {
		skip := (cfg.Skipper != nil && cfg.Skipper(c)) ||
			!cacheableMethod[c.Request.Method] ||
			c.GetHeader(cfg.BypassHeader) != ""
		if skip {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		if replayCached(c, cfg.Cache, key) {
			return
		}

		rec := &responseRecorder{ResponseWriter: c.Writer, limit: cfg.MaxBodyBytes}
		c.Writer = rec
		c.Next()

		storeResponse(c, cfg, key, rec, cacheableStatus)
	}
}

// cachedResponse KV 里的响应快照.
type cachedResponse struct {
	Status int               `json:"status"`
	Header map[string]string `json:"header,omitempty"`
	Body   []byte            `json:"body,omitempty"`
	ETag   string            `json:"etag,omitempty"`
	Stored int64             `json:"stored"` // unix nano
}

// responseCacheKey 方法 + 路由 + 排序后的 query 与 vary 头，xxhash 压缩.
func responseCacheKey(c *gin.Context, vary []string) string {
	var b strings.Builder

	b.WriteString(c.Request.Method)
	b.WriteByte(' ')

	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}

	b.WriteString(route)

	if q := c.Request.URL.Query(); len(q) > 0 {
		names := make([]string, 0, len(q))
		for name := range q {
			names = append(names, name)
		}

		sort.Strings(names)

		for _, name := range names {
			b.WriteByte('&')
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(strings.Join(q[name], ","))
		}
	}

	for _, h := range vary {
		b.WriteByte('|')
		b.WriteString(h)
		b.WriteByte('=')
		b.WriteString(c.GetHeader(h))
	}

	return fmt.Sprintf("%s%x", cacheKeyPrefix, xxhash.Sum64String(b.String()))
}

// replayCached 命中时回放缓存响应并中断处理链.
func replayCached(c *gin.Context, cache *appcache.Cache, key string) bool {
	entry, err := appcache.Get[cachedResponse](c.Request.Context(), cache, key)
	if err != nil {
		return false
	}

	h := c.Writer.Header()
	for k, v := range entry.Header {
		h.Set(k, v)
	}

	if entry.ETag != "" {
		h.Set("ETag", entry.ETag)
	}

	h.Set("Age", fmt.Sprintf("%.0f", time.Since(time.Unix(0, entry.Stored)).Seconds()))
	h.Set("X-Cache", "HIT")

	if entry.ETag != "" && c.GetHeader("If-None-Match") == entry.ETag {
		c.Status(http.StatusNotModified)
		c.Abort()

		return true
	}

	c.Status(entry.Status)

	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.Write(entry.Body)
	}

	c.Abort()

	return true
}

// storeResponse 异步写缓存；状态码不符、响应体超限或声明
// no-store/private 的响应直接放弃.
func storeResponse(c *gin.Context, cfg CacheConfig, key string, rec *responseRecorder, cacheableStatus map[int]bool) {
	status := c.Writer.Status()
	if !cacheableStatus[status] || rec.overflowed {
		return
	}

	cc := strings.ToLower(c.Writer.Header().Get("Cache-Control"))
	if strings.Contains(cc, "no-store") || strings.Contains(cc, "private") {
		return
	}

	if cfg.TTL <= 0 {
		return
	}

	body := rec.body.Bytes()

	header := make(map[string]string)
	for k, v := range c.Writer.Header() {
		if len(v) > 0 {
			header[k] = v[0]
		}
	}

	etag := c.Writer.Header().Get("ETag")
	if etag == "" {
		etag = fmt.Sprintf("\"%x\"", xxhash.Sum64(body))
		c.Writer.Header().Set("ETag", etag)
		header["ETag"] = etag
	}

	entry := cachedResponse{Status: status, Header: header, Body: body, ETag: etag, Stored: time.Now().UnixNano()}

	go func(ctx context.Context) {
		_ = appcache.Set(ctx, cfg.Cache, key, entry, cfg.TTL)
	}(c.Request.Context())

	c.Writer.Header().Set("X-Cache", "MISS")
}

// responseRecorder 边写客户端边捕获响应体，超过 limit 即放弃捕获.
type responseRecorder struct {
	gin.ResponseWriter

	body       bytes.Buffer
	limit      int
	overflowed bool
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	if !w.overflowed {
		if w.limit > 0 && w.body.Len()+len(b) > w.limit {
			w.overflowed = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}
