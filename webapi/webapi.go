// Package webapi provides the HTTP surface of the sync engine.
// It is organized into sub-packages:
// - syncapi: sync passes, state and bookkeeping
// - split: split previews
// - conversion: payment currency conversion
// - feed: the quota-limited transactions feed
package webapi

import (
	"errors"
	"strings"
	"time"

	"github.com/amirasaad/splitsync/pkg/app"
	"github.com/amirasaad/splitsync/webapi/common"
	conversionweb "github.com/amirasaad/splitsync/webapi/conversion"
	feedweb "github.com/amirasaad/splitsync/webapi/feed"
	splitweb "github.com/amirasaad/splitsync/webapi/split"
	"github.com/amirasaad/splitsync/webapi/syncapi"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupApp Initialize Fiber with custom configuration
func SetupApp(a *app.App) *fiber.App {
	fiberApp := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return common.ProblemDetailsJSON(c, "Internal Server Error", err)
		},
	})

	maxRequests, window := 100, time.Minute
	if rl := a.Config.RateLimit; rl != nil {
		maxRequests, window = rl.MaxRequests, rl.Window
	}
	// Uses X-Forwarded-For when behind a proxy, then X-Real-IP, then the peer.
	fiberApp.Use(limiter.New(limiter.Config{
		Max:        maxRequests,
		Expiration: window,
		KeyGenerator: func(c *fiber.Ctx) string {
			if forwardedFor := c.Get("X-Forwarded-For"); forwardedFor != "" {
				if commaIndex := strings.Index(forwardedFor, ","); commaIndex != -1 {
					return strings.TrimSpace(forwardedFor[:commaIndex])
				}
				return strings.TrimSpace(forwardedFor)
			}
			if realIP := c.Get("X-Real-IP"); realIP != "" {
				return realIP
			}
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return common.ProblemDetailsJSON(
				c,
				"Too Many Requests",
				errors.New("rate limit exceeded"),
				fiber.StatusTooManyRequests,
			)
		},
	}))
	fiberApp.Use(recover.New())
	if a.Config.Env == "development" {
		fiberApp.Use(logger.New())
	}

	fiberApp.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("splitsync is running! 🚀")
	})

	syncapi.Routes(fiberApp, a.Orchestrator, a.Deps.Metadata)
	splitweb.Routes(fiberApp, a.Calculator)
	conversionweb.Routes(fiberApp, a.Conversion)
	feedweb.Routes(fiberApp, a.Feed)
	return fiberApp
}
