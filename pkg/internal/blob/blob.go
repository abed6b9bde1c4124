// Package blob 提供内容流与临时产物的窄接口. 操作引擎只依赖 Store，
// 默认实现基于 MinIO：内容桶存文件版本字节，临时桶存批量下载生成的压缩包.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/docvault/pkg/configs"
	s3c "github.com/yeisme/docvault/pkg/internal/storage/s3"
)

// Store 内容流接口.
type Store interface {
	// OpenRead 打开内容读取流，调用方负责 Close.
	OpenRead(ctx context.Context, contentPath string) (io.ReadCloser, error)
	// Delete 删除内容对象（永久删除文件版本时调用）.
	Delete(ctx context.Context, contentPath string) error
	// SaveTemp 将流写入临时产物路径，size 未知时传 -1.
	SaveTemp(ctx context.Context, tempPath string, r io.Reader, size int64) error
	// OpenTemp 打开临时产物读取流.
	OpenTemp(ctx context.Context, tempPath string) (io.ReadCloser, error)
	// DeleteTemp 删除临时产物.
	DeleteTemp(ctx context.Context, tempPath string) error
	// ListTempOlderThan 列出早于 cutoff 的临时产物路径（过期清理用）.
	ListTempOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// S3Store 基于 MinIO 的 Store 实现.
type S3Store struct {
	client *s3c.Client
}

// NewS3Store 创建 S3Store.
func NewS3Store(client *s3c.Client) *S3Store {
	return &S3Store{client: client}
}

// TempArchivePath 每用户的临时压缩包路径：{prefix}/{owner}/{archive_name}.
// 固定文件名，后一次打包覆盖前一次（压缩包单次取回后即删除）.
func TempArchivePath(owner string) string {
	cfg := configs.GetConfig().Operations
	return path.Join(cfg.TempPrefix, owner, cfg.ArchiveName)
}

// TempArchiveOwner 从临时产物路径反解 owner 段，路径不在临时前缀下时返回空串.
func TempArchiveOwner(tempPath string) string {
	prefix := configs.GetConfig().Operations.TempPrefix + "/"

	rest, ok := strings.CutPrefix(tempPath, prefix)
	if !ok {
		return ""
	}

	owner, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}

	return owner
}

// OpenRead 打开内容读取流.
func (s *S3Store) OpenRead(ctx context.Context, contentPath string) (io.ReadCloser, error) {
	bucket := s.client.GetConfig().Bucket

	obj, err := s.client.GetObject(ctx, bucket, contentPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", contentPath, err)
	}

	// GetObject 懒加载，Stat 验证对象存在
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat %s: %w", contentPath, err)
	}

	return obj, nil
}

// Delete 删除内容桶中的对象.
func (s *S3Store) Delete(ctx context.Context, contentPath string) error {
	bucket := s.client.GetConfig().Bucket

	if err := s.client.RemoveObject(ctx, bucket, contentPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", contentPath, err)
	}

	return nil
}

// SaveTemp 将流写入临时产物路径.
func (s *S3Store) SaveTemp(ctx context.Context, tempPath string, r io.Reader, size int64) error {
	bucket := s.client.GetConfig().TempBucket

	_, err := s.client.PutObject(ctx, bucket, tempPath, r, size, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("save temp %s: %w", tempPath, err)
	}

	return nil
}

// OpenTemp 打开临时产物读取流.
func (s *S3Store) OpenTemp(ctx context.Context, tempPath string) (io.ReadCloser, error) {
	bucket := s.client.GetConfig().TempBucket

	obj, err := s.client.GetObject(ctx, bucket, tempPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("open temp %s: %w", tempPath, err)
	}

	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("stat temp %s: %w", tempPath, err)
	}

	return obj, nil
}

// DeleteTemp 删除临时产物.
func (s *S3Store) DeleteTemp(ctx context.Context, tempPath string) error {
	bucket := s.client.GetConfig().TempBucket

	if err := s.client.RemoveObject(ctx, bucket, tempPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete temp %s: %w", tempPath, err)
	}

	return nil
}

// ListTempOlderThan 列出早于 cutoff 的临时产物路径.
func (s *S3Store) ListTempOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	cfg := s.client.GetConfig()
	prefix := configs.GetConfig().Operations.TempPrefix + "/"

	var expired []string

	ch := s.client.ListObjects(ctx, cfg.TempBucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range ch {
		if obj.Err != nil {
			return nil, fmt.Errorf("list temp objects: %w", obj.Err)
		}

		if obj.LastModified.Before(cutoff) {
			expired = append(expired, obj.Key)
		}
	}

	return expired, nil
}
