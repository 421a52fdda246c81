package config

import (
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// 默认值与线上部署保持一致：IPv6 wildcard 监听 + 站点规范域名。
const (
	DefaultBind          = "[::]:34407"
	DefaultCanonicalHost = "www.fimfarchive.net"
	DefaultReleaseRoot   = "releases"
	DefaultChunkSize     = ByteSize(16 * 1024 * 1024)
)

// Load 从进程环境读取配置，注入默认值与校验逻辑。所有键均可缺省，
// 因此空环境下也能得到可直接启动的配置。
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(byteSizeDecodeHook()), weaklyTypedInput); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(cfg.ReleaseRoot)
	if err != nil {
		return nil, fmt.Errorf("无法解析发布目录: %w", err)
	}
	cfg.ReleaseRoot = absRoot

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Bind", DefaultBind)
	v.SetDefault("CanonicalHost", DefaultCanonicalHost)
	v.SetDefault("HostGuard", true)
	v.SetDefault("ReleaseRoot", DefaultReleaseRoot)
	v.SetDefault("ChunkSize", DefaultChunkSize)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
}

// bindEnv 建立配置键到环境变量的映射。BIND/HOST 沿用部署脚本的历史命名，
// 其余键按 LOG_*/RELEASE_* 前缀展开。
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("Bind", "BIND")
	_ = v.BindEnv("CanonicalHost", "HOST")
	_ = v.BindEnv("HostGuard", "HOST_GUARD")
	_ = v.BindEnv("ReleaseRoot", "RELEASE_ROOT")
	_ = v.BindEnv("ChunkSize", "CHUNK_SIZE")
	_ = v.BindEnv("LogLevel", "LOG_LEVEL")
	_ = v.BindEnv("LogFilePath", "LOG_FILE")
	_ = v.BindEnv("LogMaxSize", "LOG_MAX_SIZE")
	_ = v.BindEnv("LogMaxBackups", "LOG_MAX_BACKUPS")
	_ = v.BindEnv("LogCompress", "LOG_COMPRESS")
}

// weaklyTypedInput 允许把环境变量中的字符串宽松转换为 bool/int 等目标类型。
func weaklyTypedInput(dc *mapstructure.DecoderConfig) {
	dc.WeaklyTypedInput = true
}

func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(ByteSize(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var size ByteSize
			if err := size.UnmarshalText([]byte(v)); err != nil {
				return nil, err
			}
			return size, nil
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			return ByteSize(v), nil
		case ByteSize:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 ByteSize 类型: %T", v)
		}
	}
}
