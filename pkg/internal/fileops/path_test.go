package fileops

import (
	"strings"
	"testing"
)

func TestSplitExt(t *testing.T) {
	cases := []struct {
		in   string
		stem string
		ext  string
	}{
		{"report.docx", "report", ".docx"},
		{"archive.tar.gz", "archive.tar", ".gz"},
		{"noext", "noext", ""},
		{"dir.v2/readme", "dir.v2/readme", ""},
		{"dir/name.txt", "dir/name", ".txt"},
	}

	for _, c := range cases {
		stem, ext := splitExt(c.in)
		if stem != c.stem || ext != c.ext {
			t.Errorf("splitExt(%q) = (%q, %q), want (%q, %q)", c.in, stem, ext, c.stem, c.ext)
		}
	}
}

// 同名条目按提交顺序获得 " (n)" 后缀，序号插在扩展名之前.
func TestUniquePaths(t *testing.T) {
	in := []string{"a.txt", "b.txt", "a.txt", "a.txt", "docs/a.txt"}

	out := uniquePaths(in)

	want := []string{"a.txt", "b.txt", "a (1).txt", "a (2).txt", "docs/a.txt"}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %q, want %q", i, out[i], want[i])
		}
	}
}

// 生成的候选名已被占用时继续递增序号.
func TestUniquePathsTakenCandidate(t *testing.T) {
	in := []string{"a.txt", "a (1).txt", "a.txt"}

	out := uniquePaths(in)

	if out[2] != "a (2).txt" {
		t.Errorf("out[2] = %q, want %q", out[2], "a (2).txt")
	}
}

func TestUniquePathsNoExtension(t *testing.T) {
	out := uniquePaths([]string{"notes", "notes"})

	if out[1] != "notes (1)" {
		t.Errorf("out[1] = %q, want %q", out[1], "notes (1)")
	}
}

func TestShortenPath(t *testing.T) {
	deep := strings.Repeat("folder/", 40) + "file.txt" // 288 字符

	got := shortenPath(deep, 200, "LONG_FOLDER_NAME")
	if got != "LONG_FOLDER_NAME/file.txt" {
		t.Errorf("shortenPath = %q", got)
	}

	// 边界内的路径原样返回
	if got := shortenPath("a/b/c.txt", 200, "LONG_FOLDER_NAME"); got != "a/b/c.txt" {
		t.Errorf("short path changed: %q", got)
	}

	// 单段超长名无目录可截断
	long := strings.Repeat("x", 300)
	if got := shortenPath(long, 200, "LONG_FOLDER_NAME"); got != long {
		t.Errorf("single segment should stay intact")
	}
}

// 截断点取边界前最后一个分隔符，保留的尾段可含多级.
func TestShortenPathKeepsTail(t *testing.T) {
	head := strings.Repeat("d/", 120)
	p := head + "leaf.txt"

	got := shortenPath(p, 200, "LONG_FOLDER_NAME")
	if !strings.HasPrefix(got, "LONG_FOLDER_NAME/") || !strings.HasSuffix(got, "leaf.txt") {
		t.Errorf("unexpected shortened path %q", got)
	}

	if len(got) >= len(p) {
		t.Errorf("path not shortened: %d -> %d", len(p), len(got))
	}
}
