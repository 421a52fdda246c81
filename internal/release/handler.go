package release

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/JockeTF/fimfarchive/internal/logging"
	"github.com/JockeTF/fimfarchive/internal/server"
)

// Handler 负责 “路径解析 → 条件请求 → Range → streaming” 的全流程，
// 对外暴露 Fiber handler，内部复用只读 Store 与共享 logger。
type Handler struct {
	store      Store
	logger     *logrus.Logger
	chunkBytes int
}

// NewHandler constructs the release responder around a store, a shared logger
// and the chunk size used when streaming file bytes.
func NewHandler(store Store, logger *logrus.Logger, chunkBytes int) *Handler {
	return &Handler{
		store:      store,
		logger:     logger,
		chunkBytes: chunkBytes,
	}
}

// Handle 执行发布文件查找与最终 streaming 逻辑。正文不在 handler 内累积，
// 而是交给传输层按块推送，整个过程只占用一个 chunk 的内存。
func (h *Handler) Handle(c fiber.Ctx) error {
	method := c.Method()
	if method != fiber.MethodGet && method != fiber.MethodHead {
		c.Set(fiber.HeaderAllow, "GET, HEAD")
		return writeError(c, fiber.StatusMethodNotAllowed, "method_not_allowed")
	}

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	name := c.Params("*")
	result, err := h.store.Open(ctx, name)
	if err != nil {
		return h.respondOpenError(c, name, err)
	}

	entry := result.Entry

	if notModifiedSince(c.Get(fiber.HeaderIfModifiedSince), entry.ModTime) {
		result.Reader.Close()
		c.Set(fiber.HeaderLastModified, entry.ModTime.UTC().Format(http.TimeFormat))
		return c.SendStatus(fiber.StatusNotModified)
	}

	c.Set(fiber.HeaderContentType, inferContentType(entry.Path))
	c.Set(fiber.HeaderLastModified, entry.ModTime.UTC().Format(http.TimeFormat))
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	offset, length := int64(0), entry.SizeBytes
	status := fiber.StatusOK

	if raw := c.Get(fiber.HeaderRange); raw != "" {
		br, ok := parseByteRange(raw, entry.SizeBytes)
		if !ok {
			result.Reader.Close()
			c.Set(fiber.HeaderContentRange, "bytes */"+strconv.FormatInt(entry.SizeBytes, 10))
			return writeError(c, fiber.StatusRequestedRangeNotSatisfiable, "range_not_satisfiable")
		}
		offset, length = br.offset, br.length
		status = fiber.StatusPartialContent
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", offset, offset+length-1, entry.SizeBytes))
	}

	c.Status(status)

	if method == fiber.MethodHead {
		result.Reader.Close()
		c.Response().Header.SetContentLength(int(length))
		return nil
	}

	if offset > 0 {
		if _, err := result.Reader.Seek(offset, io.SeekStart); err != nil {
			result.Reader.Close()
			h.logFailure(c, entry.Path, "release_seek_failed", err)
			return writeError(c, fiber.StatusInternalServerError, "read_failed")
		}
	}

	var src io.Reader = result.Reader
	if length < entry.SizeBytes {
		src = io.LimitReader(result.Reader, length)
	}

	// 正文由传输层在 handler 返回后继续推送，fiber.Ctx 届时已被回收，
	// 中断日志所需的字段必须在这里先行快照。
	abortFields := logging.RequestFields(method, requestPath(c), server.RequestID(c))
	abortFields["release_path"] = entry.Path

	stream := newChunkedStream(ctx, src, result.Reader, h.chunkBytes, length)
	stream.onAbort = func(err error) {
		abortFields["error"] = err.Error()
		h.logger.WithFields(abortFields).Warn("release_stream_aborted")
	}

	return c.SendStream(stream, int(length))
}

func (h *Handler) respondOpenError(c fiber.Ctx, name string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "not_found")
	case errors.Is(err, ErrInvalidPath):
		return writeError(c, fiber.StatusBadRequest, "invalid_path")
	case errors.Is(err, fs.ErrPermission):
		h.logFailure(c, name, "release_open_failed", err)
		return writeError(c, fiber.StatusForbidden, "forbidden")
	default:
		h.logFailure(c, name, "release_open_failed", err)
		return writeError(c, fiber.StatusInternalServerError, "read_failed")
	}
}

func (h *Handler) logFailure(c fiber.Ctx, name string, event string, err error) {
	fields := logging.RequestFields(c.Method(), requestPath(c), server.RequestID(c))
	fields["release_path"] = name
	fields["error"] = err.Error()
	h.logger.WithFields(fields).Warn(event)
}

func writeError(c fiber.Ctx, status int, code string) error {
	return c.Status(status).JSON(fiber.Map{"error": code})
}

// errConnectionClosed 标记传输层在正文写完之前就关闭了流，
// 通常意味着客户端中途断开。
var errConnectionClosed = errors.New("connection closed before final byte")

// chunkedStream 以固定大小的缓冲从磁盘拉取正文，客户端断开或服务停机
// （context 取消）时停止读取。响应结束后传输层会调用 Close 释放文件句柄，
// 若此时还有未送出的字节则视为中断，触发一次 onAbort。
type chunkedStream struct {
	ctx       context.Context
	buf       *bufio.Reader
	closer    io.Closer
	remaining int64
	onAbort   func(error)
	aborted   bool
}

func newChunkedStream(ctx context.Context, src io.Reader, closer io.Closer, chunkBytes int, length int64) *chunkedStream {
	return &chunkedStream{
		ctx:       ctx,
		buf:       bufio.NewReaderSize(src, chunkBytes),
		closer:    closer,
		remaining: length,
	}
}

func (s *chunkedStream) Read(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		s.abort(err)
		return 0, err
	}

	n, err := s.buf.Read(p)
	s.remaining -= int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		s.abort(err)
	}
	return n, err
}

func (s *chunkedStream) Close() error {
	if s.remaining > 0 {
		s.abort(errConnectionClosed)
	}
	return s.closer.Close()
}

func (s *chunkedStream) abort(err error) {
	if s.aborted || s.onAbort == nil {
		return
	}
	s.aborted = true
	s.onAbort(err)
}

// notModifiedSince 判断文件在 If-Modified-Since 之后是否有变化。
// HTTP 时间精度只有秒，比较前先截断。
func notModifiedSince(raw string, modTime time.Time) bool {
	if raw == "" {
		return false
	}
	since, err := http.ParseTime(raw)
	if err != nil {
		return false
	}
	return !modTime.Truncate(time.Second).After(since)
}

type byteRange struct {
	offset int64
	length int64
}

// parseByteRange 解析单段 bytes Range。凡是无法按单段满足的请求
// （语法错误、多段、区间越界）都返回 ok=false，由调用方回复 416。
func parseByteRange(raw string, size int64) (byteRange, bool) {
	const prefix = "bytes="
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, prefix) {
		return byteRange{}, false
	}
	spec := strings.TrimSpace(strings.TrimPrefix(raw, prefix))
	if spec == "" || strings.Contains(spec, ",") {
		return byteRange{}, false
	}

	dash := strings.Index(spec, "-")
	if dash < 0 {
		return byteRange{}, false
	}

	startText := strings.TrimSpace(spec[:dash])
	endText := strings.TrimSpace(spec[dash+1:])

	if startText == "" {
		// 后缀形式 -N：最后 N 个字节。
		n, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || n <= 0 || size == 0 {
			return byteRange{}, false
		}
		if n > size {
			n = size
		}
		return byteRange{offset: size - n, length: n}, true
	}

	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, false
	}

	if endText == "" {
		return byteRange{offset: start, length: size - start}, true
	}

	end, err := strconv.ParseInt(endText, 10, 64)
	if err != nil || end < start {
		return byteRange{}, false
	}
	if end >= size {
		end = size - 1
	}
	return byteRange{offset: start, length: end - start + 1}, true
}

// inferContentType 根据扩展名推断 Content-Type。发布目录里主要是归档文件
// 与索引 JSON，识别不了的扩展名退回系统 MIME 表，最后兜底 octet-stream。
func inferContentType(name string) string {
	clean := strings.ToLower(name)
	switch {
	case strings.HasSuffix(clean, ".zip"):
		return "application/zip"
	case strings.HasSuffix(clean, ".json"):
		return "application/json"
	case strings.HasSuffix(clean, ".tar"):
		return "application/x-tar"
	case strings.HasSuffix(clean, ".tar.gz"), strings.HasSuffix(clean, ".tgz"):
		return "application/gzip"
	case strings.HasSuffix(clean, ".tar.xz"), strings.HasSuffix(clean, ".xz"):
		return "application/x-xz"
	case strings.HasSuffix(clean, ".tar.bz2"), strings.HasSuffix(clean, ".bz2"):
		return "application/x-bzip2"
	case strings.HasSuffix(clean, ".txt"):
		return "text/plain; charset=utf-8"
	}

	if ext := path.Ext(clean); ext != "" {
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
	}
	return "application/octet-stream"
}

func requestPath(c fiber.Ctx) string {
	if c == nil {
		return "/"
	}
	uri := c.Request().URI()
	if uri == nil {
		return "/"
	}
	if pathVal := string(uri.Path()); pathVal != "" {
		return pathVal
	}
	return "/"
}
