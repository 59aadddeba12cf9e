package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxDetailBytes 限制失败响应体保留给日志的长度。
const maxDetailBytes = 4 << 10

// Options 配置 Fetcher。
type Options struct {
	RegistryURL  string
	Organization string
	Username     string
	Client       *http.Client
}

// Fetcher 负责构造带 Basic 认证的上游请求并分类响应。
type Fetcher struct {
	client       *http.Client
	base         *url.URL
	organization string
	username     string
}

// NewFetcher validates options and returns a Fetcher. A nil client falls back
// to NewClient(DefaultTimeout).
func NewFetcher(opts Options) (*Fetcher, error) {
	raw := strings.TrimSpace(opts.RegistryURL)
	if raw == "" {
		return nil, errors.New("registry url required")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid registry url %q", raw)
	}
	if strings.TrimSpace(opts.Organization) == "" {
		return nil, errors.New("organization required")
	}
	username := opts.Username
	if username == "" {
		username = "token"
	}
	client := opts.Client
	if client == nil {
		client = NewClient(DefaultTimeout)
	}
	return &Fetcher{
		client:       client,
		base:         base,
		organization: opts.Organization,
		username:     username,
	}, nil
}

// URL 返回 <registry>/<organization>/<repo>/<path>。
func (f *Fetcher) URL(repo, artifactPath string) string {
	return f.base.JoinPath(f.organization, repo, artifactPath).String()
}

// Fetch performs the authenticated GET for repo/artifactPath. Transport
// failures are returned as errors; every HTTP response becomes an Outcome.
// In cached mode a redirect is resolved with exactly one unauthenticated
// follow-up request.
func (f *Fetcher) Fetch(ctx context.Context, repo, artifactPath, token string, inbound http.Header, mode Mode) (*Outcome, error) {
	target := f.URL(repo, artifactPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, err
	}
	CopyHeaders(req.Header, inbound)
	req.Header.Del("Accept-Encoding")
	req.Header.Del("Host")
	req.Header.Del("Authorization")
	req.Host = f.base.Host
	req.SetBasicAuth(f.username, token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}

	kind := Classify(resp.StatusCode, mode)
	if kind == KindRedirect {
		location := resp.Header.Get("Location")
		drain(resp.Body)
		return f.follow(ctx, resp.Request.URL, location)
	}
	return newOutcome(kind, target, resp), nil
}

// follow 对 Location 发起一次不带任何认证与入站头的请求，只接受 200。
func (f *Fetcher) follow(ctx context.Context, from *url.URL, location string) (*Outcome, error) {
	if strings.TrimSpace(location) == "" {
		return &Outcome{Kind: KindRedirectFailed, Detail: "redirect without location", URL: from.String()}, nil
	}
	target, err := from.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse redirect location %q: %w", location, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch redirect target %s: %w", target.Redacted(), err)
	}

	kind := KindSuccess
	if resp.StatusCode != http.StatusOK {
		kind = KindRedirectFailed
	}
	outcome := newOutcome(kind, target.String(), resp)
	outcome.Location = location
	outcome.Redirected = true
	return outcome, nil
}

func newOutcome(kind Kind, target string, resp *http.Response) *Outcome {
	outcome := &Outcome{
		Kind:       kind,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Location:   resp.Header.Get("Location"),
		URL:        target,
	}
	if kind == KindSuccess {
		outcome.Body = resp.Body
		return outcome
	}
	outcome.Detail = readDetail(resp.Body)
	return outcome
}

func readDetail(body io.ReadCloser) string {
	defer body.Close()
	data, _ := io.ReadAll(io.LimitReader(body, maxDetailBytes))
	_, _ = io.Copy(io.Discard, body)
	return strings.TrimSpace(string(data))
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDetailBytes))
	_ = body.Close()
}
