package handle

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/docvault/pkg/context"
)

// 依赖探活的单项超时. 负载均衡的存活探针走根 /health（带响应缓存），
// 这里的子路径逐个联通真实后端，失败返回 503.
const healthProbeTimeout = 2 * time.Second

func healthDown(c *gin.Context, component, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"component": component, "status": "unhealthy", "error": msg})
}

func healthUp(c *gin.Context, component string) {
	c.JSON(http.StatusOK, gin.H{"component": component, "status": "ok"})
}

// HealthDB 数据库连通性：目录树、标签表和操作记录都在这里.
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		healthDown(c, "db", "db client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	sqlDB, err := dbc.DB.DB()
	if err != nil {
		healthDown(c, "db", err.Error())
		return
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		healthDown(c, "db", err.Error())
		return
	}

	healthUp(c, "db")
}

// HealthS3 对象存储连通性：文件内容与临时归档产物的后端.
func HealthS3(c *gin.Context) {
	s3c := ctxPkg.GetS3Client(c.Request.Context())
	if s3c == nil || s3c.Client == nil {
		healthDown(c, "s3", "s3 client not initialized")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthProbeTimeout)
	defer cancel()

	if _, err := s3c.ListBuckets(ctx); err != nil {
		healthDown(c, "s3", err.Error())
		return
	}

	healthUp(c, "s3")
}

// HealthMQ 事件队列可用性. 连接在启动时建立，publisher 与
// subscriber 随客户端一起初始化，判空即可.
func HealthMQ(c *gin.Context) {
	if ctxPkg.GetMQClient(c.Request.Context()) == nil {
		healthDown(c, "mq", "mq client not initialized")
		return
	}

	healthUp(c, "mq")
}
