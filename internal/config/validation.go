package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ChunkSize 的合理区间。下限防止流式读取退化成逐字节系统调用，
// 上限防止单请求占用离谱的内存。
const (
	MinChunkSize = ByteSize(4 * 1024)
	MaxChunkSize = ByteSize(256 * 1024 * 1024)
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	if err := validateBind(c.Bind); err != nil {
		return fmt.Errorf("Bind: %w", err)
	}

	if c.HostGuard {
		if err := validateHost(c.CanonicalHost); err != nil {
			return fmt.Errorf("CanonicalHost: %w", err)
		}
	}

	if strings.TrimSpace(c.ReleaseRoot) == "" {
		return newFieldError("ReleaseRoot", "不能为空")
	}
	if c.ChunkSize < MinChunkSize || c.ChunkSize > MaxChunkSize {
		return newFieldError("ChunkSize", "必须在 4KiB-256MiB")
	}
	if c.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if c.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}

	return nil
}

func validateBind(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("不能为空")
	}
	_, port, err := net.SplitHostPort(raw)
	if err != nil {
		return err
	}
	parsed, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("端口必须是数字: %s", port)
	}
	if parsed <= 0 || parsed > 65535 {
		return errors.New("端口必须在 1-65535")
	}
	return nil
}

// validateHost 要求规范域名是裸 host（可带端口），不做任何 scheme/路径解析。
func validateHost(host string) error {
	if host == "" {
		return errors.New("Host Guard 开启时不能为空")
	}
	if strings.Contains(host, "/") {
		return errors.New("不允许包含路径")
	}
	if strings.ContainsAny(host, " \t") {
		return errors.New("不允许包含空格")
	}
	if strings.HasPrefix(host, "http") {
		return errors.New("不应包含协议头")
	}
	return nil
}
