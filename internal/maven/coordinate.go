package maven

import (
	"errors"
	"fmt"
	"strings"
)

// MetadataFile 是 Maven 仓库中按 artifact 维护的索引文件名，内容会随发布变化。
const MetadataFile = "maven-metadata.xml"

// minSegments 是合法仓库路径的最少段数（groupId 至少一段 + artifactId + version + file）。
const minSegments = 4

// ErrInvalidPath 表示路径段数不足或包含非法段，无法构造坐标。
var ErrInvalidPath = errors.New("invalid maven repository path")

// ErrInvalidRepository 表示仓库名不是单个普通路径段。
var ErrInvalidRepository = errors.New("invalid repository name")

// Coordinate 描述一次请求对应的 Maven 坐标；Version 为空表示 metadata 请求。
type Coordinate struct {
	GroupID    string `json:"groupId"`
	ArtifactID string `json:"artifactId"`
	Version    string `json:"version"`
	File       string `json:"file"`
}

// Parse 将仓库相对路径拆分为坐标。metadata 文件保留末尾 2 段，其余保留末尾 3 段。
func Parse(p string) (Coordinate, error) {
	segments := strings.Split(p, "/")
	if len(segments) < minSegments {
		return Coordinate{}, fmt.Errorf("%w: %q has %d segments", ErrInvalidPath, p, len(segments))
	}
	for _, seg := range segments {
		if !plainSegment(seg) {
			return Coordinate{}, fmt.Errorf("%w: %q contains segment %q", ErrInvalidPath, p, seg)
		}
	}

	n := len(segments)
	if segments[n-1] == MetadataFile {
		return Coordinate{
			GroupID:    strings.Join(segments[:n-2], "."),
			ArtifactID: segments[n-2],
			File:       segments[n-1],
		}, nil
	}

	return Coordinate{
		GroupID:    strings.Join(segments[:n-3], "."),
		ArtifactID: segments[n-3],
		Version:    segments[n-2],
		File:       segments[n-1],
	}, nil
}

// ValidateRepository 校验路由中的仓库名，它与路径一起组成缓存键和上游 URL。
func ValidateRepository(repo string) error {
	if !plainSegment(repo) || strings.Contains(repo, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidRepository, repo)
	}
	return nil
}

// plainSegment 拒绝空段、"."、".." 以及反斜杠，保证路径无法逃出所在前缀。
func plainSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".." && !strings.Contains(seg, "\\")
}

// Path rebuilds the repository-relative path the coordinate was parsed from.
func (c Coordinate) Path() string {
	parts := []string{strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID}
	if c.Version != "" {
		parts = append(parts, c.Version)
	}
	parts = append(parts, c.File)
	return strings.Join(parts, "/")
}

// PackageName 返回上游元数据 API 使用的包名 groupId.artifactId。
func (c Coordinate) PackageName() string {
	return c.GroupID + "." + c.ArtifactID
}

// IsMetadata reports whether the coordinate addresses a metadata file.
func (c Coordinate) IsMetadata() bool {
	return c.Version == "" && c.File == MetadataFile
}

// IsMetadataPath 判断缓存键/路径是否指向 metadata 文件（按后缀匹配）。
func IsMetadataPath(p string) bool {
	return strings.HasSuffix(p, MetadataFile)
}
