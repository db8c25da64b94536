package middlewares

import (
	"viterbi-notes/cmd/server/ctxkeys"
	"viterbi-notes/cmd/server/handlers/httperr"
	"viterbi-notes/internal/logger"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// JWT returns a configured Fiber middleware that:
//
//   - validates the HS256 Bearer token signature using secret
//   - makes sure the token carries a "sub" claim
//   - stores it in ctx.Locals(ctxkeys.SubjectKey) for request logs.
//
// On any problem it bubbles up a 401 via the global httperr handler.
func JWT(secret string) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(secret)},
		SuccessHandler: func(c *fiber.Ctx) error {
			// Token already verified at this point.
			token, ok := c.Locals("user").(*jwt.Token)
			if !ok {
				return httperr.Fail(httperr.ErrUnauthorized)
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				return httperr.Fail(httperr.E{Status: 401, Message: "Invalid token: missing sub"})
			}

			c.Locals(ctxkeys.SubjectKey, subject)
			return c.Next()
		},

		// Override the default "unauthorized" JSON to match the project style
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			logger.L().Info("rejected bearer token", "path", c.Path(), "error", err)
			return httperr.Fail(httperr.ErrUnauthorized)
		},
	})
}
