package cache

import (
	"context"
	"errors"
	"mime"
	"path"

	"cloud.google.com/go/storage"
)

// NewGCSStore 基于 Google Cloud Storage bucket 构建对象存储。
// client 由调用方创建并负责关闭，便于与其他组件共享凭证。
func NewGCSStore(client *storage.Client, bucket string) (Store, error) {
	if client == nil {
		return nil, errors.New("gcs client required")
	}
	if bucket == "" {
		return nil, errors.New("gcs bucket required")
	}
	return &gcsStore{bucket: client.Bucket(bucket)}, nil
}

type gcsStore struct {
	bucket *storage.BucketHandle
}

func (s *gcsStore) Stat(ctx context.Context, key string) (*Entry, error) {
	attrs, err := s.bucket.Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("stat", key, err)
	}
	return &Entry{
		Key:         key,
		SizeBytes:   attrs.Size,
		CreatedAt:   attrs.Created,
		ContentType: attrs.ContentType,
	}, nil
}

func (s *gcsStore) Get(ctx context.Context, key string) (*ReadResult, error) {
	reader, err := s.bucket.Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, ioError("read", key, err)
	}
	// 对象写入后不再原地修改（覆盖会生成新 generation），LastModified 即创建时间。
	return &ReadResult{
		Entry: Entry{
			Key:         key,
			SizeBytes:   reader.Attrs.Size,
			CreatedAt:   reader.Attrs.LastModified,
			ContentType: reader.Attrs.ContentType,
		},
		Reader: reader,
	}, nil
}

func (s *gcsStore) NewWriter(ctx context.Context, key string) (Writer, error) {
	uploadCtx, cancel := context.WithCancel(ctx)
	w := s.bucket.Object(key).NewWriter(uploadCtx)
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.ContentType = ct
	}
	return &gcsWriter{key: key, w: w, cancel: cancel}, nil
}

func (s *gcsStore) Remove(ctx context.Context, key string) error {
	err := s.bucket.Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return ioError("remove", key, err)
	}
	return nil
}

// gcsWriter 依赖 storage.Writer 的语义：Close 成功才生成对象，取消上传 context 则不生成对象。
type gcsWriter struct {
	key    string
	w      *storage.Writer
	cancel context.CancelFunc
	done   bool
}

func (g *gcsWriter) Write(p []byte) (int, error) {
	if g.done {
		return 0, errors.New("cache writer closed")
	}
	return g.w.Write(p)
}

func (g *gcsWriter) Commit() error {
	if g.done {
		return errors.New("cache writer closed")
	}
	g.done = true
	defer g.cancel()
	if err := g.w.Close(); err != nil {
		return ioError("commit", g.key, err)
	}
	return nil
}

func (g *gcsWriter) Discard() error {
	if g.done {
		return nil
	}
	g.done = true
	g.cancel()
	_ = g.w.Close()
	return nil
}
