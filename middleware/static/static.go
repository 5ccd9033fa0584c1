// Package static serves the web client. Production servers use the built
// bundle in <root>/dist unless the debug cookie is present, everything else
// gets the sources in <root>/app.
package static

import (
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
)

// Directory names below Config.Root
const (
	DistDir = "dist"
	AppDir  = "app"
)

// DefaultDebugCookie is the cookie that forces the source bundle
const DefaultDebugCookie = "debug"

// Config defines the configuration for the static middleware
type Config struct {
	// Next skips the middleware when it returns true
	Next func(c *fiber.Ctx) bool

	// Root holds the dist and app directories (default: "client")
	Root string

	// Production selects the dist bundle
	Production bool

	// DebugCookie forces the app bundle when present (default: "debug")
	DebugCookie string

	// Index is the file served for directory requests (default: "index.html")
	Index string
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Root == "" {
		cfg.Root = "client"
	}
	if cfg.DebugCookie == "" {
		cfg.DebugCookie = DefaultDebugCookie
	}
	if cfg.Index == "" {
		cfg.Index = "index.html"
	}
	return cfg
}

// Dir returns the directory the request should be served from
func Dir(cfg Config, c *fiber.Ctx) string {
	cfg = configDefault(cfg)
	if cfg.Production && c.Cookies(cfg.DebugCookie) == "" {
		return filepath.Join(cfg.Root, DistDir)
	}
	return filepath.Join(cfg.Root, AppDir)
}

// New serves files from the directory picked per request. Missing files fall
// through to the next handler untouched.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	handlers := map[string]fiber.Handler{}
	for _, dir := range []string{DistDir, AppDir} {
		root := filepath.Join(cfg.Root, dir)
		handlers[root] = filesystem.New(filesystem.Config{
			Root:  http.Dir(root),
			Index: cfg.Index,
		})
	}

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		dir := Dir(cfg, c)
		if !exists(dir, c.Path(), cfg.Index) {
			return c.Next()
		}
		return handlers[dir](c)
	}
}

// exists reports whether urlPath names a file below dir, or a directory
// holding the index file
func exists(dir, urlPath, index string) bool {
	name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+urlPath)))
	info, err := os.Stat(name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		_, err = os.Stat(filepath.Join(name, index))
		return err == nil
	}
	return true
}

// Index serves the index file of the selected directory, meant for GET /
func Index(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}
		return c.SendFile(filepath.Join(Dir(cfg, c), cfg.Index))
	}
}
