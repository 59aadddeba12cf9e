package proxy

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/logging"
	"github.com/maven-mirror/maven-mirror/internal/server"
	"github.com/maven-mirror/maven-mirror/internal/upstream"
)

// Forwarder 根据 Route.Mode 选择 direct/cached handler，并兜底 handler 的 panic。
type Forwarder struct {
	handlers map[upstream.Mode]server.ProxyHandler
	logger   *logrus.Logger
}

// NewForwarder 创建 Forwarder；未注册的模式会返回 500。
func NewForwarder(handlers map[upstream.Mode]server.ProxyHandler, logger *logrus.Logger) *Forwarder {
	copied := make(map[upstream.Mode]server.ProxyHandler, len(handlers))
	for mode, handler := range handlers {
		if handler != nil {
			copied[mode] = handler
		}
	}
	return &Forwarder{
		handlers: copied,
		logger:   logger,
	}
}

// NewModeForwarder wires both modes of h.
func NewModeForwarder(h *Handler, logger *logrus.Logger) *Forwarder {
	return NewForwarder(map[upstream.Mode]server.ProxyHandler{
		upstream.ModeDirect: h.Direct(),
		upstream.ModeCached: h.Cached(),
	}, logger)
}

// Handle 实现 server.ProxyHandler。
func (f *Forwarder) Handle(c fiber.Ctx, route *server.Route) error {
	requestID := server.RequestID(c)
	var handler server.ProxyHandler
	if route != nil {
		handler = f.handlers[route.Mode]
	}
	if handler == nil {
		return f.respondMissingHandler(c, route, requestID)
	}
	return f.invokeHandler(c, route, handler, requestID)
}

func (f *Forwarder) respondMissingHandler(c fiber.Ctx, route *server.Route, requestID string) error {
	f.logModeError(route, "mode_handler_missing", nil, requestID)
	setRequestIDHeader(c, requestID)
	writeText(c, fiber.StatusInternalServerError, msgServerError)
	return nil
}

func (f *Forwarder) invokeHandler(c fiber.Ctx, route *server.Route, handler server.ProxyHandler, requestID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = f.respondHandlerPanic(c, route, r, requestID)
		}
	}()
	return handler.Handle(c, route)
}

func (f *Forwarder) respondHandlerPanic(c fiber.Ctx, route *server.Route, recovered interface{}, requestID string) error {
	f.logModeError(route, "mode_handler_panic", fmt.Errorf("panic: %v", recovered), requestID)
	resetResponse(c, requestID)
	writeText(c, fiber.StatusInternalServerError, msgServerError)
	return nil
}

func setRequestIDHeader(c fiber.Ctx, requestID string) {
	if requestID != "" {
		c.Set("X-Request-ID", requestID)
	}
}

func (f *Forwarder) logModeError(route *server.Route, code string, err error, requestID string) {
	if f.logger == nil {
		return
	}
	fields := routeFields(route, requestID)
	fields["action"] = "proxy"
	fields["error"] = code
	if err != nil {
		f.logger.WithFields(fields).Error(err.Error())
		return
	}
	f.logger.WithFields(fields).Error("mode handler unavailable")
}

func routeFields(route *server.Route, requestID string) logrus.Fields {
	var fields logrus.Fields
	if route == nil {
		fields = logging.RequestFields("", "", "", false)
	} else {
		fields = logging.RequestFields(route.Repo, route.Path, string(route.Mode), false)
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	return fields
}
