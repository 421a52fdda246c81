package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// ByteSize 提供更灵活的反序列化能力，兼容 "16MiB"、"512KB" 等人类可读写法
// 与纯字节整数。
type ByteSize int64

// UnmarshalText 使配置层可以识别 go-humanize 支持的所有大小写法。
func (s *ByteSize) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*s = ByteSize(0)
		return nil
	}

	if value, err := humanize.ParseBytes(raw); err == nil {
		*s = ByteSize(value)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil && intVal >= 0 {
		*s = ByteSize(intVal)
		return nil
	}

	return fmt.Errorf("invalid byte size value: %s", raw)
}

// Int 返回底层字节数，便于调用方分配缓冲区。
func (s ByteSize) Int() int {
	return int(s)
}

// String 输出 IEC 风格的可读值，用于启动日志。
func (s ByteSize) String() string {
	if s < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(s))
}

// Config 描述进程级运行参数。启动时构建一次，之后只读，各组件按值或指针
// 注入，不做任何运行期查找。
type Config struct {
	// Bind 是监听地址，默认 IPv6 wildcard 上的 34407 端口。
	Bind string `mapstructure:"Bind"`
	// CanonicalHost 是站点对外的唯一域名，Host Guard 依赖它做精确比较。
	CanonicalHost string `mapstructure:"CanonicalHost"`
	// HostGuard 控制是否启用域名规范化重定向；关闭后所有 Host 一视同仁。
	HostGuard bool `mapstructure:"HostGuard"`
	// ReleaseRoot 是 /releases 命名空间对应的磁盘目录，加载时解析为绝对路径。
	ReleaseRoot string `mapstructure:"ReleaseRoot"`
	// ChunkSize 控制文件流式传输时的单次读取缓冲大小。
	ChunkSize ByteSize `mapstructure:"ChunkSize"`

	LogLevel      string `mapstructure:"LogLevel"`
	LogFilePath   string `mapstructure:"LogFilePath"`
	LogMaxSize    int    `mapstructure:"LogMaxSize"`
	LogMaxBackups int    `mapstructure:"LogMaxBackups"`
	LogCompress   bool   `mapstructure:"LogCompress"`
}

// GuardMode 输出 `canonical` 或 `open`，供启动日志字段使用。
func (c Config) GuardMode() string {
	if c.HostGuard {
		return "canonical"
	}
	return "open"
}
