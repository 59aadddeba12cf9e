package upstream

import (
	"io"
	"net/http"
)

// Mode 区分直连透传与缓存回填两种拉取方式。
type Mode string

const (
	ModeDirect Mode = "direct"
	ModeCached Mode = "cached"
)

// Kind 是上游响应的分类结果。
type Kind string

const (
	KindSuccess           Kind = "success"
	KindRedirect          Kind = "redirect"
	KindRedirectFailed    Kind = "redirect_failed"
	KindAuthMisconfigured Kind = "auth_misconfigured"
	KindNotFound          Kind = "not_found"
	KindInvalidPath       Kind = "invalid_path"
	KindUnexpected        Kind = "unexpected"
)

// Outcome describes one classified upstream exchange. Body is only set for
// KindSuccess and must be closed by the caller; failure kinds carry a
// truncated copy of the upstream body in Detail instead.
type Outcome struct {
	Kind       Kind
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
	Location   string
	Detail     string
	URL        string
	Redirected bool
}

// Close releases the success body, if any.
func (o *Outcome) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// Classify maps an upstream status code to a Kind. 301 is a pass-through
// success in direct mode; both 301 and 302 are redirects in cached mode.
func Classify(status int, mode Mode) Kind {
	switch status {
	case http.StatusOK:
		return KindSuccess
	case http.StatusMovedPermanently:
		if mode == ModeDirect {
			return KindSuccess
		}
		return KindRedirect
	case http.StatusFound:
		if mode == ModeCached {
			return KindRedirect
		}
		return KindUnexpected
	case http.StatusBadRequest:
		return KindAuthMisconfigured
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusUnprocessableEntity:
		return KindInvalidPath
	default:
		return KindUnexpected
	}
}
