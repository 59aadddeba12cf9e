// Package routes registers auxiliary endpoints that sit beside the repository
// route table.
package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/secret"
	"github.com/maven-mirror/maven-mirror/internal/server"
)

// DebugPath 返回调试密钥的路径，需在 server.AppOptions.ReservedPaths 中登记。
const DebugPath = "/dummy"

// RegisterDebugRoutes 暴露 /dummy，以纯文本返回 name 对应的密钥，用于验证密钥加载链路。
// name 为空时不注册。
func RegisterDebugRoutes(app *fiber.App, secrets secret.Provider, name string, logger *logrus.Logger) {
	if app == nil || secrets == nil || name == "" {
		return
	}

	app.Get(DebugPath, func(c fiber.Ctx) error {
		fields := logrus.Fields{
			"action":     "debug_secret",
			"secret":     name,
			"request_id": server.RequestID(c),
		}
		value, err := secrets.Get(c.Context(), name)
		if err != nil {
			if logger != nil {
				logger.WithFields(fields).WithError(err).Error("debug secret unavailable")
			}
			return c.Status(fiber.StatusInternalServerError).SendString("Server error")
		}
		if logger != nil {
			logger.WithFields(fields).Info("reading debug secret")
		}
		return c.Type("txt").SendString(value)
	})
}
