package release

import (
	"context"
	"errors"
	"io"
	"time"
)

// Store 负责把 URL 中的相对路径翻译成发布目录下的只读文件。磁盘布局就是
// 发布目录本身：
//
//	<ReleaseRoot>/<path>    # 构建流水线产出的发布文件
//
// 本服务从不写发布目录，条目的 ModTime/Size 由文件系统提供。
type Store interface {
	// Open 返回一个可流式读取的发布文件。文件不存在或命中目录时返回
	// ErrNotFound，路径试图逃逸发布目录时返回 ErrInvalidPath。
	Open(ctx context.Context, name string) (*ReadResult, error)
}

// Entry 表示一次命中结果，包含绝对文件路径及文件信息。
type Entry struct {
	Path      string `json:"path"`
	FilePath  string `json:"file_path"`
	SizeBytes int64  `json:"size_bytes"`
	ModTime   time.Time
}

// ReadResult 组合 Entry 与正文 Reader，便于响应层直接将文件流式返回。
// Reader 支持 Seek，Range 请求依赖这一点。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// ErrNotFound 表示发布文件不存在。
var ErrNotFound = errors.New("release entry not found")

// ErrInvalidPath 表示请求路径试图逃逸发布目录。
var ErrInvalidPath = errors.New("invalid release path")
