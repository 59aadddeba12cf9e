package proxy

import (
	"path"
	"strings"
)

// inferContentType 根据 Maven 文件扩展名推断缓存命中时的 Content-Type。
func inferContentType(artifactPath string) string {
	clean := strings.ToLower(path.Base(artifactPath))
	switch {
	case strings.HasSuffix(clean, ".jar"), strings.HasSuffix(clean, ".war"), strings.HasSuffix(clean, ".ear"):
		return "application/java-archive"
	case strings.HasSuffix(clean, ".pom"), strings.HasSuffix(clean, ".xml"):
		return "text/xml"
	case strings.HasSuffix(clean, ".module"):
		return "application/json"
	case strings.HasSuffix(clean, ".md5"), strings.HasSuffix(clean, ".sha1"),
		strings.HasSuffix(clean, ".sha256"), strings.HasSuffix(clean, ".sha512"):
		return "text/plain"
	case strings.HasSuffix(clean, ".asc"):
		return "application/pgp-signature"
	case strings.HasSuffix(clean, ".zip"):
		return "application/zip"
	}
	return ""
}
