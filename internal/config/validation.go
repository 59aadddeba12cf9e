package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
		return newFieldError("LogLevel", "无法识别的日志级别")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}

	m := c.Mirror
	if strings.TrimSpace(m.Organization) == "" {
		return newFieldError("Organization", "不能为空")
	}
	if strings.TrimSpace(m.RootNamespace) == "" {
		return newFieldError("RootNamespace", "不能为空")
	}
	if err := validateURL(m.RegistryURL); err != nil {
		return fmt.Errorf("RegistryURL: %w", err)
	}
	if err := validateURL(m.MetadataAPIURL); err != nil {
		return fmt.Errorf("MetadataAPIURL: %w", err)
	}
	if err := validateSecretName(m.TokenSecretName, false); err != nil {
		return newFieldError("TokenSecretName", err.Error())
	}
	if err := validateSecretName(m.DebugSecretName, true); err != nil {
		return newFieldError("DebugSecretName", err.Error())
	}
	if m.MetadataTTL.DurationValue() <= 0 {
		return newFieldError("MetadataTTL", "必须大于 0")
	}

	switch c.Storage.Backend {
	case StorageBackendFS:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return newFieldError(storageField("Path"), "fs 后端不能为空")
		}
	case StorageBackendGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return newFieldError(storageField("Bucket"), "gcs 后端不能为空")
		}
	default:
		return newFieldError(storageField("Backend"), "仅支持 fs|gcs")
	}

	if c.Redis.Enabled() {
		parsed, err := url.Parse(c.Redis.URL)
		if err != nil || (parsed.Scheme != "redis" && parsed.Scheme != "rediss") {
			return newFieldError(redisField("URL"), "仅支持 redis:// 或 rediss://")
		}
		if c.Redis.LockExpiry.DurationValue() <= 0 {
			return newFieldError(redisField("LockExpiry"), "必须大于 0")
		}
	}

	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("缺少地址")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("缺少 Host: %s", raw)
	}
	return nil
}

func validateSecretName(name string, allowEmpty bool) error {
	if name == "" {
		if allowEmpty {
			return nil
		}
		return errors.New("不能为空")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return errors.New("不允许包含路径分隔符")
	}
	return nil
}
