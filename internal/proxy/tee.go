package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/maven-mirror/maven-mirror/internal/cache"
)

const (
	branchCache  = "cache"
	branchClient = "client"
)

// branchError 标记 tee 中失败的一侧，便于日志区分。
type branchError struct {
	branch string
	err    error
}

func (e *branchError) Error() string {
	return fmt.Sprintf("tee %s branch: %v", e.branch, e.err)
}

func (e *branchError) Unwrap() error { return e.err }

// teeWriter fans every chunk out to the cache sink and the client buffer.
// The first failure on either side stops the copy; the caller then discards
// the sink so no partial object is ever committed.
type teeWriter struct {
	client io.Writer
	sink   cache.Writer
}

var _ io.Writer = (*teeWriter)(nil)

func newTeeWriter(client io.Writer, sink cache.Writer) *teeWriter {
	return &teeWriter{client: client, sink: sink}
}

func (t *teeWriter) Write(p []byte) (int, error) {
	if n, err := t.sink.Write(p); err != nil {
		return n, &branchError{branch: branchCache, err: err}
	} else if n < len(p) {
		return n, &branchError{branch: branchCache, err: io.ErrShortWrite}
	}
	if n, err := t.client.Write(p); err != nil {
		return n, &branchError{branch: branchClient, err: err}
	} else if n < len(p) {
		return n, &branchError{branch: branchClient, err: io.ErrShortWrite}
	}
	return len(p), nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
