package middlewares

import (
	"strings"
	"time"

	"viterbi-notes/cmd/server/handlers/httperr"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// BuildRateLimiter limits mutating requests per client IP to max per
// expiration window. GET, HEAD and OPTIONS are never counted, nor are paths
// starting with one of skipPrefixes. max <= 0 disables limiting.
func BuildRateLimiter(max int, expiration time.Duration, skipPrefixes ...string) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		Next: func(c *fiber.Ctx) bool {
			switch c.Method() {
			case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
				return true
			}
			for _, p := range skipPrefixes {
				if strings.HasPrefix(c.Path(), p) {
					return true
				}
			}
			return false
		},
		LimitReached: func(c *fiber.Ctx) error {
			return httperr.Fail(httperr.ErrTooManyRequests)
		},
	})
}
