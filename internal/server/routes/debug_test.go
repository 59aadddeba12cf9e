package routes

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/maven-mirror/maven-mirror/internal/secret"
	"github.com/maven-mirror/maven-mirror/internal/server"
)

func TestDebugRouteServesSecret(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "dummy-token"), []byte("  hello  \n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	app := newDebugApp(t, secret.NewLocalProvider(dir), "dummy-token")

	resp, err := app.Test(httptest.NewRequest("GET", DebugPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(body) != "hello" {
		t.Fatalf("unexpected response %d %q", resp.StatusCode, body)
	}
}

func TestDebugRouteMissingSecret(t *testing.T) {
	app := newDebugApp(t, secret.NewLocalProvider(t.TempDir()), "dummy-token")

	resp, err := app.Test(httptest.NewRequest("GET", DebugPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
}

func TestDebugRouteDisabledWithoutName(t *testing.T) {
	app := newDebugApp(t, secret.NewLocalProvider(t.TempDir()), "")

	resp, err := app.Test(httptest.NewRequest("GET", DebugPath, nil))
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 when disabled, got %d", resp.StatusCode)
	}
}

func newDebugApp(t *testing.T, provider secret.Provider, name string) *fiber.App {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	app, err := server.NewApp(server.AppOptions{
		Logger: logger,
		Proxy: server.ProxyHandlerFunc(func(c fiber.Ctx, route *server.Route) error {
			return c.SendStatus(fiber.StatusNotFound)
		}),
		ReservedPaths: []string{DebugPath},
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	RegisterDebugRoutes(app, provider, name, logger)
	return app
}
