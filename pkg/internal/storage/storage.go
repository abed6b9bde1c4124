// Package storage 聚合对象存储、数据库、KV 与消息队列客户端的初始化.
//
// Example:
//
//	ctx := context.Background()
//	mgr, err := storage.Init(ctx)
//	if err != nil {
//	    // 处理错误
//	}
//
//	s3Client := mgr.GetS3Client()
//	dbClient := mgr.GetDBClient()
package storage

import (
	"context"
	"sync"

	dbc "github.com/yeisme/docvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/docvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/docvault/pkg/internal/storage/mq"
	s3c "github.com/yeisme/docvault/pkg/internal/storage/s3"
	nlog "github.com/yeisme/docvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	S3 *s3c.Client
	DB *dbc.Client
	KV *kvc.Client
	MQ *mqc.Client
}

var (
	mgr     *Manager
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置. 重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	var err error

	mgrOnce.Do(func() {
		m := &Manager{}

		if m.DB, err = dbc.New(ctx); err != nil {
			return
		}

		if m.S3, err = s3c.New(ctx); err != nil {
			return
		}

		if m.KV, err = kvc.NewKVClient(ctx); err != nil {
			return
		}

		if m.MQ, err = mqc.New(ctx); err != nil {
			return
		}

		mgr = m

		nlog.Logger().Info().Msg("storage manager initialized")
	})

	return mgr, err
}

// GetS3Client 获取 S3 客户端.
func (m *Manager) GetS3Client() *s3c.Client { return m.S3 }

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client { return m.DB }

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client { return m.KV }

// GetMQClient 获取 MQ 客户端.
func (m *Manager) GetMQClient() *mqc.Client { return m.MQ }
