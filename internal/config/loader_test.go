package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFailsWithMissingFields(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("缺失字段的配置应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	cfg := `
LogLevel = "info"
MetadataTTL = "boom"
`
	path := writeTempConfig(t, cfg)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsIntegerSeconds(t *testing.T) {
	path := writeTempConfig(t, "MetadataTTL = 600\nUpstreamTimeout = 5\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Mirror.MetadataTTL.DurationValue() != 10*time.Minute {
		t.Fatalf("整数秒应被解析, got %s", cfg.Mirror.MetadataTTL.DurationValue())
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 5*time.Second {
		t.Fatalf("UpstreamTimeout 应为 5s, got %s", cfg.Global.UpstreamTimeout.DurationValue())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, "ListenPort = 8080\n")
	t.Setenv("MAVEN_MIRROR_LISTENPORT", "9090")
	t.Setenv("MAVEN_MIRROR_ROOTNAMESPACE", "no.nav.team")
	t.Setenv("MAVEN_MIRROR_STORAGE_BACKEND", "gcs")
	t.Setenv("MAVEN_MIRROR_STORAGE_BUCKET", "mirror-bucket")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.ListenPort != 9090 {
		t.Fatalf("环境变量应覆盖 ListenPort, got %d", cfg.Global.ListenPort)
	}
	if cfg.Mirror.RootNamespace != "no.nav.team" {
		t.Fatalf("环境变量应覆盖 RootNamespace, got %s", cfg.Mirror.RootNamespace)
	}
	if cfg.Storage.Backend != StorageBackendGCS || cfg.Storage.Bucket != "mirror-bucket" {
		t.Fatalf("环境变量应覆盖 Storage, got %+v", cfg.Storage)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("显式指定但不存在的配置文件应报错")
	}
}

func TestLoadDefaultPathOptional(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("缺少默认配置文件时应使用默认值: %v", err)
	}
	if cfg.Global.ListenPort != 8080 || cfg.Mirror.Organization != "navikt" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("MAVEN_MIRROR_CONFIG", "/etc/maven-mirror/config.toml")
	if got := ResolvePath("custom.toml"); got != "custom.toml" {
		t.Fatalf("flag 应优先, got %s", got)
	}
	if got := ResolvePath(""); got != "/etc/maven-mirror/config.toml" {
		t.Fatalf("应使用环境变量, got %s", got)
	}
	t.Setenv("MAVEN_MIRROR_CONFIG", "")
	if got := ResolvePath(""); got != "" {
		t.Fatalf("未指定时应返回空串以使用默认路径, got %s", got)
	}
}
