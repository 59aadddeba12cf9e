package server

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/upstream"
)

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger *logrus.Logger
	Proxy  ProxyHandler
	// ReservedPaths 是由其它模块注册的单段路径（如 /dummy），仓库路由遇到时让行。
	ReservedPaths []string
}

const (
	contextKeyRequestID = "_mirror_request_id"

	indexText = "Maven package registry mirror.\n" +
		"GET /<repo>/<path> or /simple/<repo>/<path> proxies directly, " +
		"GET /cached/<repo>/<path> serves through the cache.\n"
)

// NewApp builds a Fiber application with request IDs, panic recovery and the
// repository route table.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	app.Get("/", func(c fiber.Ctx) error {
		return c.Type("txt").SendString(indexText)
	})
	app.Get("/favicon.ico", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	reserved := make(map[string]struct{}, len(opts.ReservedPaths))
	for _, p := range opts.ReservedPaths {
		reserved[strings.Trim(p, "/")] = struct{}{}
	}

	// 具体前缀必须先于 /:repo/* 注册
	app.Get("/simple/:repo/*", repoHandler(opts, upstream.ModeDirect, nil))
	app.Get("/cached/:repo/*", repoHandler(opts, upstream.ModeCached, nil))
	app.Get("/:repo/*", repoHandler(opts, upstream.ModeDirect, reserved))

	return app, nil
}

func repoHandler(opts AppOptions, mode upstream.Mode, reserved map[string]struct{}) fiber.Handler {
	return func(c fiber.Ctx) error {
		route := &Route{
			Mode: mode,
			Repo: c.Params("repo"),
			Path: strings.TrimPrefix(c.Params("*"), "/"),
		}
		if route.Path == "" {
			if _, ok := reserved[route.Repo]; ok {
				return c.Next()
			}
		}
		return opts.Proxy.Handle(c, route)
	}
}

// requestIDMiddleware 为每个请求生成 ID，写入 Locals 与响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

// SetRequestID stores a request identifier; used by tests that bypass the middleware.
func SetRequestID(c fiber.Ctx, reqID string) {
	c.Locals(contextKeyRequestID, reqID)
}
