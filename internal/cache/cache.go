package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// cachePrefix 是制品缓存在对象存储中的根前缀。
const cachePrefix = "cache/"

// ErrInvalidKey 表示缓存键规范化后会离开 cache/ 前缀。
var ErrInvalidKey = errors.New("invalid cache key")

// Key 构造缓存键 <repo>/<path>，同时隐含上游位置。
func Key(repo, path string) string {
	return repo + "/" + path
}

// Cache 在 Store 之上实现制品缓存：存在性检查附带 metadata 新鲜度策略，读写透传到后端。
type Cache struct {
	store  Store
	policy FreshnessPolicy
	logger *logrus.Logger
	now    func() time.Time
}

// NewCache 构造制品缓存，默认使用 time.Now 作为时钟。
func NewCache(store Store, policy FreshnessPolicy, logger *logrus.Logger) *Cache {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Cache{
		store:  store,
		policy: policy,
		logger: logger,
		now:    time.Now,
	}
}

// Exists 判断 key 是否可用。过期的 metadata 条目会被顺带删除并返回 false，
// 因此对 metadata key 该方法不是幂等的。
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	object, err := objectName(key)
	if err != nil {
		return false, err
	}
	entry, err := c.store.Stat(ctx, object)
	switch {
	case errors.Is(err, ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}

	if !c.policy.Expires(object) {
		return true, nil
	}

	now := c.now()
	age := now.Sub(entry.CreatedAt)
	fields := logrus.Fields{
		"action":     "cache_freshness",
		"key":        key,
		"created_at": entry.CreatedAt,
		"age_s":      int64(age / time.Second),
	}
	if c.policy.IsStale(object, entry.CreatedAt, now) {
		c.logger.WithFields(fields).Info("metadata_expired")
		if err := c.store.Remove(ctx, object); err != nil {
			return false, err
		}
		return false, nil
	}
	c.logger.WithFields(fields).Debug("metadata_reused")
	return true, nil
}

// Read 打开缓存正文；调用方负责关闭 Reader。
func (c *Cache) Read(ctx context.Context, key string) (*ReadResult, error) {
	object, err := objectName(key)
	if err != nil {
		return nil, err
	}
	return c.store.Get(ctx, object)
}

// Write 返回缓存写入器；只有 Commit 成功后条目才算持久化。
func (c *Cache) Write(ctx context.Context, key string) (Writer, error) {
	object, err := objectName(key)
	if err != nil {
		return nil, err
	}
	return c.store.NewWriter(ctx, object)
}

// objectName 将缓存键映射为对象名；任何需要规范化的键（含 ..、. 或空段）都被拒绝，
// 以免 credentials/ 等前缀被读到或被过期清理误删。
func objectName(key string) (string, error) {
	object := cachePrefix + key
	if key == "" || path.Clean(object) != object || !strings.HasPrefix(object, cachePrefix) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return object, nil
}
