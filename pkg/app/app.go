// Package app 提供应用程序的初始化和配置功能.
package app

import (
	contextPkg "context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/docvault/pkg/api"
	"github.com/yeisme/docvault/pkg/cache"
	"github.com/yeisme/docvault/pkg/configs"
	"github.com/yeisme/docvault/pkg/context"
	"github.com/yeisme/docvault/pkg/internal/blob"
	"github.com/yeisme/docvault/pkg/internal/fileops"
	"github.com/yeisme/docvault/pkg/internal/handle"
	"github.com/yeisme/docvault/pkg/internal/jobs"
	"github.com/yeisme/docvault/pkg/internal/marker"
	"github.com/yeisme/docvault/pkg/internal/security"
	"github.com/yeisme/docvault/pkg/internal/storage"
	"github.com/yeisme/docvault/pkg/internal/tree"
	"github.com/yeisme/docvault/pkg/log"
	"github.com/yeisme/docvault/pkg/metrics"
	"github.com/yeisme/docvault/pkg/middleware"
	"github.com/yeisme/docvault/pkg/scheduler"
	"github.com/yeisme/docvault/pkg/tracing"
)

type App struct {
	Engine *gin.Engine
	config *configs.AppConfig

	sched      *scheduler.Scheduler
	marks      *marker.Engine
	markCancel contextPkg.CancelFunc
}

func NewApp(configPath string) *App {
	ctx := contextPkg.Background()
	engine := gin.New()

	// 初始化配置
	if err := configs.InitConfig(configPath); err != nil {
		fmt.Printf("Error initializing config: %v\n", err)
		os.Exit(1)
	}

	// 初始化追踪
	config := configs.GetConfig()
	if err := tracing.InitTracer(config.Tracing); err != nil {
		fmt.Printf("Error initializing tracing: %v\n", err)
		os.Exit(1)
	}

	// 初始化监控
	if err := metrics.InitMetrics(config.Metrics); err != nil {
		fmt.Printf("Error initializing metrics: %v\n", err)
		os.Exit(1)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		fmt.Printf("Error initializing storage: %v\n", err)
		os.Exit(1)
	}

	ctx = context.WithStorageManager(ctx, manager)

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	// 目录树与权限
	store := tree.NewStore(manager.GetDBClient())
	if err := store.Migrate(); err != nil {
		fmt.Printf("Error migrating tree tables: %v\n", err)
		os.Exit(1)
	}

	filter := security.NewGrantFilter(manager.GetDBClient(), store)
	if err := filter.Migrate(); err != nil {
		fmt.Printf("Error migrating grant tables: %v\n", err)
		os.Exit(1)
	}

	blobs := blob.NewS3Store(manager.GetS3Client())
	kvCache := cache.NewCache(manager.GetKVClient())

	// 标记引擎：单消费者协程，生命周期随应用
	marks := marker.NewEngine(store, filter, kvCache, manager.GetMQClient().Publisher())
	markCtx, markCancel := contextPkg.WithCancel(ctx)

	go marks.Run(markCtx)

	// 批量操作引擎
	ops := fileops.NewEngine(fileops.Options{
		Tree:      store,
		Filter:    filter,
		Blobs:     blobs,
		Marker:    marks,
		Publisher: manager.GetMQClient().Publisher(),
		Journal:   fileops.NewGormJournal(manager.GetDBClient()),
	})

	// 调度器与定时任务
	sched, err := scheduler.NewScheduler()
	if err != nil {
		fmt.Printf("Error creating scheduler: %v\n", err)
		os.Exit(1)
	}

	if err := jobs.RegisterCronJobs(sched, manager, ops, blobs); err != nil {
		fmt.Printf("Error registering cron jobs: %v\n", err)
		os.Exit(1)
	}

	sched.Start()

	// 健康探针会高频打到 DB/S3，响应短暂缓存
	probeCache := middleware.DefaultCacheConfig(kvCache)
	probeCache.TTL = 5 * time.Second
	probeCache.Skipper = func(c *gin.Context) bool {
		return !strings.HasPrefix(c.Request.URL.Path, "/api/v1/health")
	}

	engine.Use(
		gin.Recovery(),
		middleware.GinLoggerMiddleware(),
		middleware.CORSMiddleware(config.Server),
		middleware.AuthMiddleware(config.Auth),
		middleware.RoleMiddleware(),
		middleware.StorageMiddleware(manager),
		middleware.SchedulerMiddleware(sched),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.RateLimitMiddleware(config.RateLimit),
		middleware.CircuitBreakerMiddleware(config.CircuitBreaker),
		middleware.CacheMiddleware(probeCache),
	)

	if config.Metrics.Enabled {
		_ = metrics.StartMetricsServer(config.Metrics, engine)
	}

	api.RegisterGroup(engine, handle.NewHandlers(ops, marks, blobs, store))

	return &App{
		Engine:     engine,
		config:     config,
		sched:      sched,
		marks:      marks,
		markCancel: markCancel,
	}
}

func (a *App) Run() error {
	defer a.shutdown()

	return a.Engine.Run(fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port))
}

// shutdown 停止调度器并等待标记引擎消费完队列.
func (a *App) shutdown() {
	if a.sched != nil {
		_ = a.sched.Shutdown()
	}

	if a.markCancel != nil {
		a.markCancel()
		<-a.marks.Done()
	}
}
