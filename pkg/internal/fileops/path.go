package fileops

import (
	"fmt"
	"strings"
)

// splitExt 拆分路径为主干与扩展名（含点）. 只看最后一个路径段.
func splitExt(p string) (stem, ext string) {
	for i := len(p) - 1; i >= 0; i-- {
		switch p[i] {
		case '.':
			return p[:i], p[i:]
		case '/':
			return p, ""
		}
	}

	return p, ""
}

// uniquePaths 按提交顺序消解压缩包内路径冲突：同一路径的第二次出现
// 在扩展名前追加 " (1)"，第三次 " (2)"，依此类推；无扩展名的路径
// 在末尾追加. 生成的候选名若再次冲突则递增序号直到空闲.
func uniquePaths(paths []string) []string {
	used := make(map[string]int, len(paths))
	out := make([]string, len(paths))

	for i, p := range paths {
		n := used[p]
		used[p] = n + 1

		if n == 0 {
			out[i] = p
			continue
		}

		stem, ext := splitExt(p)

		for {
			cand := fmt.Sprintf("%s (%d)%s", stem, n, ext)
			if used[cand] == 0 {
				used[cand] = 1
				out[i] = cand

				break
			}

			n++
		}
	}

	return out
}

// shortenPath 超长路径截断：超过 limit 的路径，200 字符边界前最后一个
// 分隔符（含）之前的部分整体替换为固定字面段，只保留末段，
// 兼容对路径长度敏感的解压工具.
func shortenPath(p string, limit int, segment string) string {
	if limit <= 0 || len(p) <= limit {
		return p
	}

	cut := strings.LastIndex(p[:limit], "/")
	if cut < 0 {
		cut = strings.LastIndex(p, "/")
	}

	if cut < 0 {
		// 单段超长名，无法截断目录部分
		return p
	}

	return segment + p[cut:]
}
