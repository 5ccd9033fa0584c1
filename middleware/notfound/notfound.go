// Package notfound answers requests nothing else handled. HTML clients get
// the 404 page, everyone else an empty 404.
package notfound

import (
	"errors"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"
	glog "github.com/goliatone/go-logger/glog"
)

// Config defines the configuration for the not found middleware
type Config struct {
	// Next skips the middleware when it returns true
	Next func(c *fiber.Ctx) bool

	// Page is the HTML file sent to HTML clients (default: "client/404.html")
	Page string

	// Logger reports pages that cannot be sent (optional)
	Logger glog.Logger
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.Page == "" {
		cfg.Page = "client/404.html"
	}
	return cfg
}

// New wraps the rest of the chain: a 404 raised or set downstream is
// answered here. Register it before any route.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		err := c.Next()
		if !isNotFound(c, err) {
			return err
		}

		return Respond(c, cfg)
	}
}

// Handler is a terminal handler for unmatched routes, for apps that prefer
// registering it last
func Handler(config ...Config) fiber.Handler {
	cfg := configDefault(config...)
	return func(c *fiber.Ctx) error {
		return Respond(c, cfg)
	}
}

// Respond writes the not found answer for c
func Respond(c *fiber.Ctx, cfg Config) error {
	c.Response().ResetBody()

	if AcceptsHTML(c) {
		if _, err := os.Stat(cfg.Page); err != nil {
			if cfg.Logger != nil {
				cfg.Logger.Error("failed to send not found page", "page", cfg.Page, "error", err)
			}
		} else if err := c.Status(fiber.StatusNotFound).SendFile(cfg.Page); err == nil {
			return nil
		} else if cfg.Logger != nil {
			cfg.Logger.Error("failed to send not found page", "page", cfg.Page, "error", err)
		}
		c.Response().ResetBody()
	}

	c.Status(fiber.StatusNotFound)
	return nil
}

// AcceptsHTML reports whether the Accept header mentions html
func AcceptsHTML(c *fiber.Ctx) bool {
	return strings.Contains(strings.ToLower(c.Get(fiber.HeaderAccept)), "html")
}

func isNotFound(c *fiber.Ctx, err error) bool {
	if err != nil {
		var fe *fiber.Error
		return errors.As(err, &fe) && fe.Code == fiber.StatusNotFound
	}
	return c.Response().StatusCode() == fiber.StatusNotFound && len(c.Response().Body()) == 0
}
