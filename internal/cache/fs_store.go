package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// NewFileStore 以 basePath 为根目录构建本地对象存储，整站复用一份实例。
func NewFileStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    make(map[string]*entryLock),
		now:      time.Now,
	}, nil
}

// fileStore 通过 entryLock 串行化同一个 key 的提交与删除，同时复用 basePath。
type fileStore struct {
	basePath string
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

func (s *fileStore) Stat(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("stat", key, err)
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	entry := fileEntry(key, info)
	return &entry, nil
}

func (s *fileStore) Get(ctx context.Context, key string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("read", key, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ioError("read", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, ErrNotFound
	}

	return &ReadResult{
		Entry:  fileEntry(key, info),
		Reader: f,
	}, nil
}

func (s *fileStore) NewWriter(ctx context.Context, key string) (Writer, error) {
	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, ioError("write", key, err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return nil, ioError("write", key, err)
	}

	return &fileWriter{
		ctx:    ctx,
		store:  s,
		key:    key,
		target: filePath,
		temp:   tempFile,
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, key string) error {
	unlock := s.lockEntry(key)
	defer unlock()

	filePath, err := s.entryPath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError("remove", key, err)
	}
	return nil
}

func (s *fileStore) lockEntry(key string) func() {
	s.mu.Lock()
	lock := s.locks[key]
	if lock == nil {
		lock = &entryLock{}
		s.locks[key] = lock
	}
	lock.refs++
	s.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		s.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(s.locks, key)
		}
		s.mu.Unlock()
	}
}

func (s *fileStore) entryPath(key string) (string, error) {
	rel := path.Clean("/" + key)
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", fmt.Errorf("invalid cache key %q", key)
	}

	filePath := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if !strings.HasPrefix(filePath, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid cache key %q", key)
	}
	return filePath, nil
}

func fileEntry(key string, info fs.FileInfo) Entry {
	return Entry{
		Key:         key,
		SizeBytes:   info.Size(),
		CreatedAt:   info.ModTime(),
		ContentType: mime.TypeByExtension(path.Ext(key)),
	}
}

// fileWriter 写入同目录下的临时文件，Commit 时 rename 到目标路径保证原子可见。
type fileWriter struct {
	ctx    context.Context
	store  *fileStore
	key    string
	target string
	temp   *os.File
	done   bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errors.New("cache writer closed")
	}
	if err := w.ctx.Err(); err != nil {
		return 0, err
	}
	return w.temp.Write(p)
}

func (w *fileWriter) Commit() error {
	if w.done {
		return errors.New("cache writer closed")
	}
	w.done = true
	tempName := w.temp.Name()

	if err := w.ctx.Err(); err != nil {
		w.temp.Close()
		os.Remove(tempName)
		return err
	}
	if err := w.temp.Close(); err != nil {
		os.Remove(tempName)
		return ioError("commit", w.key, err)
	}

	unlock := w.store.lockEntry(w.key)
	defer unlock()

	created := w.store.now().UTC()
	if err := os.Chtimes(tempName, created, created); err != nil {
		os.Remove(tempName)
		return ioError("commit", w.key, err)
	}
	if err := os.Rename(tempName, w.target); err != nil {
		os.Remove(tempName)
		return ioError("commit", w.key, err)
	}
	return nil
}

func (w *fileWriter) Discard() error {
	if w.done {
		return nil
	}
	w.done = true
	tempName := w.temp.Name()
	w.temp.Close()
	if err := os.Remove(tempName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioError("discard", w.key, err)
	}
	return nil
}
