package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/cache"
	"github.com/maven-mirror/maven-mirror/internal/flight"
	"github.com/maven-mirror/maven-mirror/internal/logging"
	"github.com/maven-mirror/maven-mirror/internal/maven"
	"github.com/maven-mirror/maven-mirror/internal/secret"
	"github.com/maven-mirror/maven-mirror/internal/server"
	"github.com/maven-mirror/maven-mirror/internal/upstream"
	"github.com/maven-mirror/maven-mirror/internal/visibility"
)

// VisibilityGate 判断制品是否允许被镜像。
type VisibilityGate interface {
	InNamespace(coord maven.Coordinate) bool
	Check(ctx context.Context, coord maven.Coordinate, token string) (visibility.Result, error)
}

// Fetcher 发起上游请求并返回分类后的结果。
type Fetcher interface {
	Fetch(ctx context.Context, repo, artifactPath, token string, inbound http.Header, mode upstream.Mode) (*upstream.Outcome, error)
}

// Options 汇总 Handler 的依赖。
type Options struct {
	Cache         *cache.Cache
	Secrets       secret.Provider
	Gate          VisibilityGate
	Fetcher       Fetcher
	Flight        *flight.Group
	Logger        *logrus.Logger
	TokenName     string
	Organization  string
	RootNamespace string
}

// Handler 负责 orchestrate “解析 → 缓存查找 → 可见性校验 → 回源 → 写缓存” 的全流程，
// 对外暴露 direct/cached 两种模式的 Fiber handler。
type Handler struct {
	cache         *cache.Cache
	secrets       secret.Provider
	gate          VisibilityGate
	fetcher       Fetcher
	flight        *flight.Group
	logger        *logrus.Logger
	tokenName     string
	organization  string
	rootNamespace string
}

// NewHandler validates dependencies and constructs a Handler.
func NewHandler(opts Options) (*Handler, error) {
	switch {
	case opts.Cache == nil:
		return nil, errors.New("cache is required")
	case opts.Secrets == nil:
		return nil, errors.New("secret provider is required")
	case opts.Gate == nil:
		return nil, errors.New("visibility gate is required")
	case opts.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case opts.Logger == nil:
		return nil, errors.New("logger is required")
	case opts.TokenName == "":
		return nil, errors.New("token secret name is required")
	}
	group := opts.Flight
	if group == nil {
		group = flight.NewGroup(nil)
	}
	return &Handler{
		cache:         opts.Cache,
		secrets:       opts.Secrets,
		gate:          opts.Gate,
		fetcher:       opts.Fetcher,
		flight:        group,
		logger:        opts.Logger,
		tokenName:     opts.TokenName,
		organization:  opts.Organization,
		rootNamespace: opts.RootNamespace,
	}, nil
}

// Direct returns the direct-mode handler.
func (h *Handler) Direct() server.ProxyHandler {
	return server.ProxyHandlerFunc(h.handleDirect)
}

// Cached returns the cached-mode handler.
func (h *Handler) Cached() server.ProxyHandler {
	return server.ProxyHandlerFunc(h.handleCached)
}

// handleDirect: PARSE → GATE → FETCH → RESPOND，上游 200/301 原样透传。
func (h *Handler) handleDirect(c fiber.Ctx, route *server.Route) error {
	req := h.newRequest(c, route)

	coord, ok := h.authorize(c, req)
	if !ok {
		return nil
	}

	outcome, err := h.fetcher.Fetch(req.ctx, route.Repo, route.Path, req.token, inboundHeaders(c), upstream.ModeDirect)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, err)
		return nil
	}
	defer outcome.Close()

	if outcome.Kind != upstream.KindSuccess {
		h.respondOutcome(c, req, outcome)
		return nil
	}

	copyResponseHeaders(c, outcome.Header)
	c.Set(headerCacheHit, "false")
	c.Status(outcome.StatusCode)
	if _, err := copyWithContext(req.ctx, c.Response().BodyWriter(), outcome.Body); err != nil {
		resetResponse(c, req.requestID)
		req.fail(c, fiber.StatusInternalServerError, msgServerError, fmt.Errorf("stream upstream body: %w", err))
		return nil
	}
	req.entry().WithFields(logrus.Fields{
		"upstream":        outcome.URL,
		"upstream_status": outcome.StatusCode,
		"group_id":        coord.GroupID,
	}).Info("proxy_complete")
	return nil
}

// handleCached: PARSE → CACHE_LOOKUP；命中直接返回（跳过可见性校验），
// 未命中时由 single-flight leader 执行 GATE → FETCH → TEE。
func (h *Handler) handleCached(c fiber.Ctx, route *server.Route) error {
	req := h.newRequest(c, route)

	if _, err := parseRoute(route); err != nil {
		req.reply(c, fiber.StatusBadRequest, msgInvalidPath(route.Path), err)
		return nil
	}

	key := cache.Key(route.Repo, route.Path)
	hit, err := h.cache.Exists(req.ctx, key)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, err)
		return nil
	}
	if hit {
		h.serveCache(c, req, key)
		return nil
	}

	value, leader, err := h.flight.Do(req.ctx, key, func(ctx context.Context) (any, error) {
		return h.fill(c, req, key), nil
	})
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, err)
		return nil
	}
	if leader {
		return nil
	}

	// follower：leader 已写入缓存则从缓存读取，否则复用 leader 的失败响应
	result, _ := value.(*fillResult)
	if result == nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, errors.New("empty fill result"))
		return nil
	}
	req.log = req.log.WithField("shared_fill", true)
	if result.cached {
		h.serveCache(c, req, key)
		return nil
	}
	req.reply(c, result.status, result.message, nil)
	return nil
}

// fillResult 记录 leader 的处理结果，供同 key 的 follower 复用。
type fillResult struct {
	status  int
	message string
	cached  bool
}

func (h *Handler) fill(c fiber.Ctx, req *request, key string) *fillResult {
	// 跨副本锁获取后可能已被其它实例填充
	if hit, err := h.cache.Exists(req.ctx, key); err == nil && hit {
		h.serveCache(c, req, key)
		return &fillResult{cached: true}
	}

	if _, ok := h.authorize(c, req); !ok {
		return req.result(c)
	}

	outcome, err := h.fetcher.Fetch(req.ctx, req.route.Repo, req.route.Path, req.token, inboundHeaders(c), upstream.ModeCached)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, err)
		return req.result(c)
	}
	defer outcome.Close()

	if outcome.Kind != upstream.KindSuccess {
		h.respondOutcome(c, req, outcome)
		return req.result(c)
	}

	written, err := h.teeToCache(c, req, key, outcome)
	if err != nil {
		resetResponse(c, req.requestID)
		req.fail(c, fiber.StatusInternalServerError, msgServerError, err)
		return req.result(c)
	}

	req.entry().WithFields(logrus.Fields{
		"upstream":        outcome.URL,
		"upstream_status": outcome.StatusCode,
		"redirected":      outcome.Redirected,
		"bytes":           written,
	}).Info("cache_filled")
	return &fillResult{status: fiber.StatusOK, cached: true}
}

// teeToCache 将上游正文同时写入缓存与响应，缓存 Commit 成功后请求才算完成。
func (h *Handler) teeToCache(c fiber.Ctx, req *request, key string, outcome *upstream.Outcome) (int64, error) {
	sink, err := h.cache.Write(req.ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open cache writer: %w", err)
	}

	copyResponseHeaders(c, outcome.Header)
	c.Set(headerCacheHit, "false")
	c.Status(fiber.StatusOK)

	tee := newTeeWriter(c.Response().BodyWriter(), sink)
	written, err := copyWithContext(req.ctx, tee, outcome.Body)
	if err != nil {
		_ = sink.Discard()
		return written, err
	}
	if err := sink.Commit(); err != nil {
		_ = sink.Discard()
		return written, &branchError{branch: branchCache, err: err}
	}
	return written, nil
}

func (h *Handler) serveCache(c fiber.Ctx, req *request, key string) {
	result, err := h.cache.Read(req.ctx, key)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, fmt.Errorf("read cache: %w", err))
		return
	}
	defer result.Reader.Close()

	req.cacheHit = true
	contentType := inferContentType(req.route.Path)
	if contentType == "" {
		contentType = result.Entry.ContentType
	}
	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	if result.Entry.SizeBytes > 0 {
		c.Response().Header.SetContentLength(int(result.Entry.SizeBytes))
	}
	c.Set(headerCacheHit, "true")
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		req.entry().Info("cache_hit")
		return
	}

	if _, err := copyWithContext(req.ctx, c.Response().BodyWriter(), result.Reader); err != nil {
		resetResponse(c, req.requestID)
		req.fail(c, fiber.StatusInternalServerError, msgServerError, fmt.Errorf("stream cache body: %w", err))
		return
	}
	req.entry().Info("cache_hit")
}

// authorize 执行 PARSE → 命名空间 → SECRET → 可见性查询；失败时已写好响应。
func (h *Handler) authorize(c fiber.Ctx, req *request) (maven.Coordinate, bool) {
	coord, err := parseRoute(req.route)
	if err != nil {
		req.reply(c, fiber.StatusBadRequest, msgInvalidPath(req.route.Path), err)
		return coord, false
	}
	req.log = req.log.WithFields(logrus.Fields{
		"group_id":    coord.GroupID,
		"artifact_id": coord.ArtifactID,
	})

	if !h.gate.InNamespace(coord) {
		req.log = req.log.WithField("visibility", visibility.ReasonNamespaceRejected)
		req.reply(c, fiber.StatusNotFound, msgNamespaceRejected(h.rootNamespace), nil)
		return coord, false
	}

	token, err := h.secrets.Get(req.ctx, h.tokenName)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, fmt.Errorf("load %s: %w", h.tokenName, err))
		return coord, false
	}
	req.token = token

	result, err := h.gate.Check(req.ctx, coord, token)
	if err != nil {
		req.fail(c, fiber.StatusInternalServerError, msgServerError, fmt.Errorf("visibility check: %w", err))
		return coord, false
	}
	req.log = req.log.WithField("visibility", result.Reason)
	if !result.Allowed {
		req.reply(c, fiber.StatusNotFound, msgNotVisible(req.route.Repo, h.organization), nil)
		return coord, false
	}
	return coord, true
}

// parseRoute 校验仓库名与制品路径；两者都会进入缓存键与上游 URL，必须先于任何存储访问。
func parseRoute(route *server.Route) (maven.Coordinate, error) {
	if err := maven.ValidateRepository(route.Repo); err != nil {
		return maven.Coordinate{}, err
	}
	return maven.Parse(route.Path)
}

// respondOutcome 将非成功的上游分类映射为状态码；404 在 direct 模式下沿用历史的 400。
func (h *Handler) respondOutcome(c fiber.Ctx, req *request, outcome *upstream.Outcome) {
	req.log = req.log.WithFields(logrus.Fields{
		"upstream":        outcome.URL,
		"upstream_status": outcome.StatusCode,
		"upstream_kind":   outcome.Kind,
	})
	switch outcome.Kind {
	case upstream.KindNotFound:
		status := fiber.StatusNotFound
		if req.route.Mode == upstream.ModeDirect {
			status = fiber.StatusBadRequest
		}
		req.reply(c, status, msgUpstreamNotFound, nil)
	case upstream.KindInvalidPath:
		req.reply(c, fiber.StatusUnprocessableEntity, msgUpstreamInvalidPath, nil)
	case upstream.KindAuthMisconfigured:
		req.fail(c, fiber.StatusInternalServerError, msgAuthMisconfigured, upstreamError(outcome))
	case upstream.KindRedirectFailed:
		req.fail(c, fiber.StatusInternalServerError, msgRedirectFailed, upstreamError(outcome))
	default:
		req.fail(c, fiber.StatusInternalServerError, msgUnexpected(outcome.URL), upstreamError(outcome))
	}
}

func upstreamError(outcome *upstream.Outcome) error {
	return fmt.Errorf("upstream %s status %d: %s", outcome.Kind, outcome.StatusCode, outcome.Detail)
}

// request 聚合单个请求的上下文、日志字段与最终响应，避免在各阶段重复传参。
type request struct {
	ctx       context.Context
	route     *server.Route
	requestID string
	started   time.Time
	token     string
	cacheHit  bool
	status    int
	message   string
	log       *logrus.Entry
}

func (h *Handler) newRequest(c fiber.Ctx, route *server.Route) *request {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := server.RequestID(c)
	fields := logging.RequestFields(route.Repo, route.Path, string(route.Mode), false)
	fields["action"] = "proxy"
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return &request{
		ctx:       ctx,
		route:     route,
		requestID: requestID,
		started:   time.Now(),
		log:       h.logger.WithFields(fields),
	}
}

func (r *request) entry() *logrus.Entry {
	return r.log.WithFields(logrus.Fields{
		"cache_hit":  r.cacheHit,
		"elapsed_ms": time.Since(r.started).Milliseconds(),
	})
}

// reply 写出纯文本响应，err 非空时按 warn 记录（调用方预期内的失败）。
func (r *request) reply(c fiber.Ctx, status int, message string, err error) {
	r.status, r.message = status, message
	entry := r.entry().WithField("status", status)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("proxy_rejected")
	writeText(c, status, message)
}

// fail 写出纯文本错误响应并以 error 级别记录。
func (r *request) fail(c fiber.Ctx, status int, message string, err error) {
	r.status, r.message = status, message
	entry := r.entry().WithField("status", status)
	if err != nil {
		entry = entry.WithField("error", err.Error())
	}
	entry.Error("proxy_failed")
	writeText(c, status, message)
}

func (r *request) result(c fiber.Ctx) *fillResult {
	status := r.status
	if status == 0 {
		status = c.Response().StatusCode()
	}
	return &fillResult{status: status, message: r.message}
}

func writeText(c fiber.Ctx, status int, message string) {
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	_ = c.Status(status).SendString(message)
}

// resetResponse 丢弃已缓冲的响应头与正文，保留请求 ID。
func resetResponse(c fiber.Ctx, requestID string) {
	c.Response().Reset()
	setRequestIDHeader(c, requestID)
}

func inboundHeaders(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func copyResponseHeaders(c fiber.Ctx, headers http.Header) {
	for key, values := range headers {
		if upstream.IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}
}
