package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"15m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数：监听端口、日志与上游超时。
type GlobalConfig struct {
	ListenPort      int      `mapstructure:"ListenPort"`
	LogLevel        string   `mapstructure:"LogLevel"`
	LogFilePath     string   `mapstructure:"LogFilePath"`
	LogMaxSize      int      `mapstructure:"LogMaxSize"`
	LogMaxBackups   int      `mapstructure:"LogMaxBackups"`
	LogCompress     bool     `mapstructure:"LogCompress"`
	UpstreamTimeout Duration `mapstructure:"UpstreamTimeout"`
}

// MirrorConfig 描述镜像的上游组织、白名单命名空间与密钥来源。
type MirrorConfig struct {
	Organization     string   `mapstructure:"Organization"`
	RootNamespace    string   `mapstructure:"RootNamespace"`
	RegistryURL      string   `mapstructure:"RegistryURL"`
	MetadataAPIURL   string   `mapstructure:"MetadataAPIURL"`
	RegistryUsername string   `mapstructure:"RegistryUsername"`
	TokenSecretName  string   `mapstructure:"TokenSecretName"`
	DebugSecretName  string   `mapstructure:"DebugSecretName"`
	SecretDir        string   `mapstructure:"SecretDir"`
	MetadataTTL      Duration `mapstructure:"MetadataTTL"`
}

// Storage backends.
const (
	StorageBackendFS  = "fs"
	StorageBackendGCS = "gcs"
)

// StorageConfig 选择对象存储后端：本地目录或 GCS bucket。
type StorageConfig struct {
	Backend string `mapstructure:"Backend"`
	Bucket  string `mapstructure:"Bucket"`
	Path    string `mapstructure:"Path"`
}

// RedisConfig 配置可选的跨副本回源锁；URL 为空时不启用。
type RedisConfig struct {
	URL        string   `mapstructure:"URL"`
	LockExpiry Duration `mapstructure:"LockExpiry"`
}

// Enabled reports whether a Redis URL is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global  GlobalConfig  `mapstructure:",squash"`
	Mirror  MirrorConfig  `mapstructure:",squash"`
	Storage StorageConfig `mapstructure:"Storage"`
	Redis   RedisConfig   `mapstructure:"Redis"`
}

// Summary 返回启动日志使用的精简配置描述，不包含任何密钥内容。
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"organization":   c.Mirror.Organization,
		"root_namespace": c.Mirror.RootNamespace,
		"storage":        c.Storage.Backend,
		"metadata_ttl":   c.Mirror.MetadataTTL.DurationValue().String(),
		"redis_lock":     c.Redis.Enabled(),
	}
}
