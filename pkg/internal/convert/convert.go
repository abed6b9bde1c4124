// Package convert 封装文档格式转换服务的窄接口. 转换失败对批量任务
// 不致命：调用方记录条目级错误并跳过该条目.
package convert

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/yeisme/docvault/pkg/internal/model"
)

// ErrUnsupported 目标格式不受支持.
var ErrUnsupported = errors.New("convert: unsupported target format")

// Service 格式转换接口.
type Service interface {
	// NeedsConvert 判断文件是否需要转换才能产出 targetExt 格式.
	NeedsConvert(f *model.File, targetExt string) bool
	// Convert 返回转换后的内容流，调用方负责 Close.
	Convert(ctx context.Context, f *model.File, targetExt string) (io.ReadCloser, error)
}

// Noop 空实现：任何跨格式转换都报不支持. 压缩打包在没有转换后端时
// 退回原始字节流.
type Noop struct{}

// NeedsConvert 仅当目标扩展名非空且与当前不同才需要转换.
func (Noop) NeedsConvert(f *model.File, targetExt string) bool {
	if targetExt == "" {
		return false
	}

	return !strings.EqualFold(f.Extension(), targetExt)
}

// Convert 恒定失败.
func (Noop) Convert(_ context.Context, f *model.File, targetExt string) (io.ReadCloser, error) {
	_ = f
	return nil, ErrUnsupported
}
