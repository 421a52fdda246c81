package release

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// NewStore 以 root 为根目录构建只读的发布文件存储，整个进程复用一份实例。
// 目录内容由外部构建流水线维护，这里不做创建，启动时目录可以尚不存在。
func NewStore(root string) (Store, error) {
	if root == "" {
		return nil, errors.New("release root required")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve release root: %w", err)
	}

	return &fileStore{root: abs}, nil
}

// fileStore 是 Store 的磁盘实现。发布目录只读，无需任何锁。
type fileStore struct {
	root string
}

func (s *fileStore) Open(ctx context.Context, name string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, clean, err := s.entryPath(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		// 目录列表被禁用，命中目录与不存在同样处理。
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	entry := Entry{
		Path:      clean,
		FilePath:  filePath,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}

	return &ReadResult{
		Entry:  entry,
		Reader: f,
	}, nil
}

// entryPath 把 URL 相对路径映射到发布目录下的磁盘路径。任何带 .. 的
// 逃逸尝试都直接拒绝，而不是归一化之后继续服务。
func (s *fileStore) entryPath(name string) (string, string, error) {
	if strings.ContainsRune(name, 0) {
		return "", "", ErrInvalidPath
	}
	for _, segment := range strings.Split(name, "/") {
		if segment == ".." {
			return "", "", ErrInvalidPath
		}
	}

	clean := path.Clean("/" + name)
	filePath := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
	if filePath != s.root && !strings.HasPrefix(filePath, s.root+string(filepath.Separator)) {
		return "", "", ErrInvalidPath
	}

	return filePath, clean, nil
}
