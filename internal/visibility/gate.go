// Package visibility decides whether an artifact may be mirrored: the groupId
// must sit under the configured root namespace, and the package's backing
// source repository must not be private according to the upstream metadata API.
package visibility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/maven-mirror/maven-mirror/internal/maven"
)

// Reason 描述放行/拒绝的原因，仅用于日志区分。
type Reason string

const (
	ReasonNamespaceRejected   Reason = "NAMESPACE_REJECTED"
	ReasonPackageNotFound     Reason = "PACKAGE_NOT_FOUND"
	ReasonNoBackingRepository Reason = "NO_BACKING_REPOSITORY"
	ReasonPrivate             Reason = "PRIVATE"
	ReasonOK                  Reason = "OK"
)

// Result 是一次可见性判断的结果。
type Result struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason"`
}

func deny(reason Reason) Result { return Result{Allowed: false, Reason: reason} }

// ErrMalformedResponse 表示元数据 API 返回了既非错误也非预期结构的响应。
var ErrMalformedResponse = errors.New("malformed metadata response")

// packagesPreviewMediaType 启用 GraphQL packages 预览字段。
const packagesPreviewMediaType = "application/vnd.github.packages-preview+json"

// Options 配置 Gate。
type Options struct {
	Endpoint      string
	Organization  string
	RootNamespace string
	Timeout       time.Duration
}

// Gate queries the organization metadata API for package visibility.
type Gate struct {
	client        *resty.Client
	endpoint      string
	organization  string
	rootNamespace string
}

// NewGate 创建 Gate，内部持有共享 resty 客户端。
func NewGate(opts Options) (*Gate, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("metadata endpoint required")
	}
	if strings.TrimSpace(opts.Organization) == "" {
		return nil, errors.New("organization required")
	}
	if strings.TrimSpace(opts.RootNamespace) == "" {
		return nil, errors.New("root namespace required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().SetTimeout(timeout)

	return &Gate{
		client:        client,
		endpoint:      opts.Endpoint,
		organization:  opts.Organization,
		rootNamespace: opts.RootNamespace,
	}, nil
}

// Check 先做命名空间白名单（无网络），再查询上游确认关联仓库非私有。
func (g *Gate) Check(ctx context.Context, coord maven.Coordinate, token string) (Result, error) {
	if !g.InNamespace(coord) {
		return deny(ReasonNamespaceRejected), nil
	}

	nodes, err := g.queryPackages(ctx, coord.PackageName(), token)
	if err != nil {
		return Result{}, err
	}
	if len(nodes) == 0 {
		return deny(ReasonPackageNotFound), nil
	}
	repo := nodes[0].Repository
	if repo == nil {
		return deny(ReasonNoBackingRepository), nil
	}
	if repo.IsPrivate {
		return deny(ReasonPrivate), nil
	}
	return Result{Allowed: true, Reason: ReasonOK}, nil
}

// InNamespace 仅做命名空间前缀判断，不发起任何网络请求。
func (g *Gate) InNamespace(coord maven.Coordinate) bool {
	return strings.HasPrefix(coord.GroupID, g.rootNamespace)
}

// RootNamespace returns the allow-listed groupId prefix.
func (g *Gate) RootNamespace() string {
	return g.rootNamespace
}

func (g *Gate) queryPackages(ctx context.Context, packageName, token string) ([]packageNode, error) {
	resp, err := g.client.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Accept", packagesPreviewMediaType).
		SetHeader("Content-Type", "application/json").
		SetBody(graphQLRequest{Query: packagesQuery(g.organization, packageName)}).
		Post(g.endpoint)
	if err != nil {
		return nil, fmt.Errorf("metadata query for %s: %w", packageName, err)
	}

	body := resp.String()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrMalformedResponse, resp.StatusCode(), truncate(body, 512))
	}

	var payload graphQLResponse
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	if payload.Data == nil || payload.Data.Organization == nil {
		return nil, fmt.Errorf("%w: missing data.organization (errors: %s)", ErrMalformedResponse, payload.errorMessages())
	}
	return payload.Data.Organization.Packages.Nodes, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
