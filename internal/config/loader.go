package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix 是所有配置项环境变量覆盖的前缀，例如 MAVEN_MIRROR_LISTENPORT。
const EnvPrefix = "MAVEN_MIRROR"

// DefaultPath 是未显式指定时查找的配置文件。
const DefaultPath = "config.toml"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
// 显式指定的文件必须存在；默认路径缺失时仅使用默认值与环境变量。
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("读取配置失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == StorageBackendFS {
		absStorage, err := filepath.Abs(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("无法解析存储目录: %w", err)
		}
		cfg.Storage.Path = absStorage
	}

	return &cfg, nil
}

// ResolvePath 按 flag > 环境变量 > 默认值 的顺序确定配置路径。
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8080)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("UpstreamTimeout", "30s")

	v.SetDefault("Organization", "navikt")
	v.SetDefault("RootNamespace", "no.nav")
	v.SetDefault("RegistryURL", "https://maven.pkg.github.com")
	v.SetDefault("MetadataAPIURL", "https://api.github.com/graphql")
	v.SetDefault("RegistryUsername", "token")
	v.SetDefault("TokenSecretName", "github-token")
	v.SetDefault("DebugSecretName", "dummy-token")
	v.SetDefault("SecretDir", ".")
	v.SetDefault("MetadataTTL", "15m")

	v.SetDefault("Storage.Backend", StorageBackendFS)
	v.SetDefault("Storage.Bucket", "github-package-registry-storage")
	v.SetDefault("Storage.Path", "./storage")

	v.SetDefault("Redis.URL", "")
	v.SetDefault("Redis.LockExpiry", "2m")
}

func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenPort == 0 {
		g.ListenPort = 8080
	}
	if g.UpstreamTimeout.DurationValue() == 0 {
		g.UpstreamTimeout = Duration(30 * time.Second)
	}

	m := &cfg.Mirror
	if m.MetadataTTL.DurationValue() == 0 {
		m.MetadataTTL = Duration(15 * time.Minute)
	}
	if strings.TrimSpace(m.RegistryUsername) == "" {
		m.RegistryUsername = "token"
	}
	if strings.TrimSpace(m.SecretDir) == "" {
		m.SecretDir = "."
	}
	m.RegistryURL = strings.TrimRight(strings.TrimSpace(m.RegistryURL), "/")

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendFS
	}
	if cfg.Redis.LockExpiry.DurationValue() == 0 {
		cfg.Redis.LockExpiry = Duration(2 * time.Minute)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
