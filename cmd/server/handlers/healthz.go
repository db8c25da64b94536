package handlers

import (
	"context"
	"time"

	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/fiber/v2"
)

const HealthzTimeout = 5 * time.Second

// Counter is the part of the notes service the health check needs
type Counter interface {
	Count(ctx context.Context) (*notes.CountResponse, error)
}

// Healthz returns a handler reporting whether the notes store answers a count.
// @Summary Health check
// @Description Check if the server and its notes store are healthy
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]string
func Healthz(counter Counter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), HealthzTimeout)
		defer cancel()

		resp, err := counter.Count(ctx)
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "down",
				"error":  err.Error(),
			})
		}

		return c.JSON(fiber.Map{
			"status": "ok",
			"notes":  resp.Count,
		})
	}
}
