// Package context 在 request context 上传递存储管理器，处理器与
// 定时任务由此取到 db/s3/mq/kv 客户端，不依赖全局变量.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/docvault/pkg/internal/storage"
	dbc "github.com/yeisme/docvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/docvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/docvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/docvault/pkg/internal/storage/s3"
)

type managerKey struct{}

// WithStorageManager 注入存储管理器.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, mgr)
}

// GetManager 取存储管理器，未注入时返回 nil.
func GetManager(ctx context.Context) *storage.Manager {
	if mgr, ok := ctx.Value(managerKey{}).(*storage.Manager); ok {
		return mgr
	}

	return nil
}

// GetS3Client 取对象存储客户端.
func GetS3Client(ctx context.Context) *s3c.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetS3Client()
	}

	return nil
}

// GetDBClient 取数据库客户端.
func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

// GetMQClient 取消息队列客户端.
func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

// GetKVClient 取 KV 客户端.
func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// WithTraceContext span 在录制时给 logger 附上 trace_id/span_id.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		return logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return logger
}
