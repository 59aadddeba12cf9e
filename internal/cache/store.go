package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Store 负责对象存储的读写。键为扁平字符串，例如：
//
//	cache/<repo>/<path>        # 缓存的制品正文
//	credentials/<name>         # 密钥
//
// 每个对象只有正文，创建时间由后端维护。
type Store interface {
	// Stat 返回对象描述，不存在时返回 ErrNotFound。
	Stat(ctx context.Context, key string) (*Entry, error)

	// Get 返回一个可流式读取的对象。若不存在则返回 ErrNotFound。
	Get(ctx context.Context, key string) (*ReadResult, error)

	// NewWriter 打开一个两阶段写入器：Commit 之前对象不可见，Discard 或 ctx 取消会丢弃全部内容。
	NewWriter(ctx context.Context, key string) (Writer, error)

	// Remove 删除对象，对象不存在不视为错误。
	Remove(ctx context.Context, key string) error
}

// Writer is the sink half of a cache fill.
type Writer interface {
	io.Writer
	// Commit 使对象持久可见；只有 Commit 返回 nil 时写入才算完成。
	Commit() error
	// Discard 丢弃尚未提交的内容，可重复调用。
	Discard() error
}

// Entry 描述一个已存在的对象。
type Entry struct {
	Key         string    `json:"key"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	ContentType string    `json:"content_type,omitempty"`
}

// ReadResult 组合 Entry 与正文 Reader，便于代理层直接将 Body 流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadCloser
}

// ErrNotFound 表示对象不存在。
var ErrNotFound = errors.New("cache entry not found")

// IOError wraps a backend failure with the operation and key involved.
type IOError struct {
	Op  string
	Key string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func ioError(op, key string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	return &IOError{Op: op, Key: key, Err: err}
}
