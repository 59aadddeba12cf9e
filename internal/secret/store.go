package secret

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/maven-mirror/maven-mirror/internal/cache"
)

const credentialsPrefix = "credentials/"

// maxSecretBytes 限制单个密钥对象的读取大小。
const maxSecretBytes = 64 * 1024

// StoreProvider reads secrets from credentials/<name> in the object store.
type StoreProvider struct {
	store cache.Store
}

func NewStoreProvider(store cache.Store) *StoreProvider {
	return &StoreProvider{store: store}
}

func (p *StoreProvider) Get(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	result, err := p.store.Get(ctx, credentialsPrefix+name)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return "", fmt.Errorf("%w: %s%s not found", ErrUnavailable, credentialsPrefix, name)
		}
		return "", err
	}
	defer result.Reader.Close()

	data, err := io.ReadAll(io.LimitReader(result.Reader, maxSecretBytes))
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
