package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalProvider 读取 Dir 下与密钥同名的文件。
type LocalProvider struct {
	Dir string
}

// NewLocalProvider 返回本地覆盖 Provider，dir 为空时使用工作目录。
func NewLocalProvider(dir string) *LocalProvider {
	if dir == "" {
		dir = "."
	}
	return &LocalProvider{Dir: dir}
}

func (p *LocalProvider) Get(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(p.Dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: no local override %s", ErrUnavailable, name)
		}
		return "", fmt.Errorf("read local secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
