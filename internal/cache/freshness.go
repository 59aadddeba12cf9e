package cache

import (
	"time"

	"github.com/maven-mirror/maven-mirror/internal/maven"
)

// DefaultMetadataTTL 是 maven-metadata.xml 的默认新鲜度窗口。
const DefaultMetadataTTL = 15 * time.Minute

// FreshnessPolicy 决定缓存条目是否过期；仅 metadata 条目有 TTL，其余条目写入后不可变。
type FreshnessPolicy struct {
	MetadataTTL time.Duration
}

// NewFreshnessPolicy 构造策略，ttl <= 0 时退回 DefaultMetadataTTL。
func NewFreshnessPolicy(ttl time.Duration) FreshnessPolicy {
	if ttl <= 0 {
		ttl = DefaultMetadataTTL
	}
	return FreshnessPolicy{MetadataTTL: ttl}
}

// Expires reports whether entries stored under key are subject to the TTL.
func (p FreshnessPolicy) Expires(key string) bool {
	return maven.IsMetadataPath(key)
}

// IsStale 是纯函数：metadata 条目的年龄严格大于 TTL 时视为过期。
func (p FreshnessPolicy) IsStale(key string, createdAt, now time.Time) bool {
	if !p.Expires(key) {
		return false
	}
	return now.Sub(createdAt) > p.MetadataTTL
}
