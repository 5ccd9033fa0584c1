package static_test

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-user-auth/middleware/static"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newClientRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app", "main.js"), "app bundle")
	writeFile(t, filepath.Join(root, "app", "index.html"), "app index")
	writeFile(t, filepath.Join(root, "dist", "main.js"), "dist bundle")
	writeFile(t, filepath.Join(root, "dist", "index.html"), "dist index")
	return root
}

func body(t *testing.T, app *fiber.App, path string, cookie string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	if cookie != "" {
		req.Header.Set(fiber.HeaderCookie, cookie)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestStaticServesAppOutsideProduction(t *testing.T) {
	root := newClientRoot(t)
	app := fiber.New()
	app.Use(static.New(static.Config{Root: root}))

	status, content := body(t, app, "/main.js", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "app bundle", content)
}

func TestStaticServesDistInProduction(t *testing.T) {
	root := newClientRoot(t)
	app := fiber.New()
	app.Use(static.New(static.Config{Root: root, Production: true}))

	status, content := body(t, app, "/main.js", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "dist bundle", content)
}

func TestStaticDebugCookieForcesApp(t *testing.T) {
	root := newClientRoot(t)
	app := fiber.New()
	app.Use(static.New(static.Config{Root: root, Production: true}))

	status, content := body(t, app, "/main.js", "debug=1")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "app bundle", content)
}

func TestStaticMissingFileFallsThrough(t *testing.T) {
	root := newClientRoot(t)
	app := fiber.New()
	app.Use(static.New(static.Config{Root: root}))
	app.Get("/api/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	status, content := body(t, app, "/api/ping", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "pong", content)

	status, _ = body(t, app, "/missing.js", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestStaticIndex(t *testing.T) {
	root := newClientRoot(t)
	app := fiber.New()
	app.Get("/", static.Index(static.Config{Root: root, Production: true}))

	status, content := body(t, app, "/", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "dist index", content)
}
