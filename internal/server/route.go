package server

import (
	"github.com/gofiber/fiber/v3"

	"github.com/maven-mirror/maven-mirror/internal/upstream"
)

// Route 描述一次镜像请求：处理模式、上游仓库名与 Maven 相对路径。
type Route struct {
	Mode upstream.Mode
	Repo string
	Path string
}

// ProxyHandler describes the component responsible for serving a Route.
// It allows injecting fake handlers during tests.
type ProxyHandler interface {
	Handle(fiber.Ctx, *Route) error
}

// ProxyHandlerFunc adapts a function to the ProxyHandler interface.
type ProxyHandlerFunc func(fiber.Ctx, *Route) error

// Handle makes ProxyHandlerFunc satisfy ProxyHandler.
func (f ProxyHandlerFunc) Handle(c fiber.Ctx, route *Route) error {
	return f(c, route)
}
