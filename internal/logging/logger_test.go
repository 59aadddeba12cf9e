package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/maven-mirror/maven-mirror/internal/config"
)

func TestConfigureDefaultsToStdout(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"}, nil)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("未指定文件时应输出到 stdout")
	}
}

func TestInitLoggerFallbackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	if err := os.Mkdir(blocked, 0o755); err != nil {
		t.Fatalf("创建目录失败: %v", err)
	}
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("设置目录权限失败: %v", err)
	}
	t.Cleanup(func() { _ = os.Chmod(blocked, 0o755) })

	cfg := config.GlobalConfig{
		LogLevel:    "info",
		LogFilePath: filepath.Join(blocked, "sub", "maven-mirror.log"),
	}
	logger, err := InitLogger(cfg, nil)
	if err != nil {
		t.Fatalf("初始化不应失败: %v", err)
	}
	if logger.Out != os.Stdout {
		t.Fatalf("fallback 时应退回 stdout")
	}
}

func TestConfigureCreatesRotatingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "maven-mirror.log")
	cfg := config.GlobalConfig{LogLevel: "debug", LogFilePath: path}
	logger, err := InitLogger(cfg, nil)
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	logger.Info("test")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("预期创建日志文件: %v", err)
	}
}

func TestRequestFieldsCarryMode(t *testing.T) {
	fields := RequestFields("repo", "no/nav/a/b/1/b-1.jar", "cached", true)
	if fields["mode"] != "cached" || fields["cache_hit"] != true || fields["repo"] != "repo" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}

func TestInitLoggerAttachesServiceFields(t *testing.T) {
	logger, err := InitLogger(config.GlobalConfig{LogLevel: "info"}, ServiceFields("navikt", "no.nav"))
	if err != nil {
		t.Fatalf("配置失败: %v", err)
	}
	buf := &bytes.Buffer{}
	logger.SetOutput(buf)

	logger.WithFields(RequestFields("releases", "no/nav/a/b/1/b-1.jar", "cached", false)).
		WithField("organization", "override").
		Info("proxy_complete")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("日志应为 JSON: %v (%s)", err, buf.String())
	}
	if line["service"] != ServiceName || line["root_namespace"] != "no.nav" || line["mode"] != "cached" {
		t.Fatalf("缺少实例字段: %v", line)
	}
	if line["organization"] != "override" {
		t.Fatalf("显式字段应优先于实例字段，得到 %v", line["organization"])
	}
}
