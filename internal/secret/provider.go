// Package secret resolves named credentials. A local override file wins over
// the remote object store so developers can run the mirror without touching
// shared credentials.
package secret

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/maven-mirror/maven-mirror/internal/cache"
)

// ErrUnavailable 表示所有来源都没有该密钥。
var ErrUnavailable = errors.New("secret unavailable")

// Provider 按名称提供密钥字符串。
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// Chain 依次尝试各 Provider；ErrUnavailable 继续下一个，其它错误直接返回。
type Chain []Provider

func (c Chain) Get(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	for _, p := range c {
		value, err := p.Get(ctx, name)
		if err == nil {
			return value, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnavailable, name)
}

// NewProvider 构造默认链：本地覆盖目录优先，其次对象存储 credentials/ 前缀。
func NewProvider(localDir string, store cache.Store) Provider {
	chain := Chain{NewLocalProvider(localDir)}
	if store != nil {
		chain = append(chain, NewStoreProvider(store))
	}
	return chain
}

func validateName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid secret name %q", name)
	}
	return nil
}
