package main

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

// Mirrors setupRouter: bearer auth sits on /api/v1, the limiter on /notes.
func TestAuthMiddlewareOrder(t *testing.T) {
	type stack []string

	mw := func(s *stack, id string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			*s = append(*s, id)
			return c.Next() // just record & pass through
		}
	}
	final := func(s *stack, id string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			*s = append(*s, id)
			return c.SendStatus(200) // terminate the chain with 200
		}
	}

	tests := []struct {
		method string
		path   string
		expect []string
	}{
		{fiber.MethodGet, "/api/v1/notes", []string{"jwt", "limiter", "handler"}},
		{fiber.MethodPost, "/api/v1/notes", []string{"jwt", "limiter", "handler"}},
		{fiber.MethodPost, "/api/v1/notes/abc/favorite", []string{"jwt", "limiter", "handler"}},
		{fiber.MethodGet, "/healthz", []string{"handler"}},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			var trace stack
			app := fiber.New()

			app.Get("/healthz", final(&trace, "handler"))
			v1 := app.Group("/api/v1")
			v1.Use(mw(&trace, "jwt"))
			grp := v1.Group("/notes", mw(&trace, "limiter"))
			grp.Get("/", final(&trace, "handler"))
			grp.Post("/", final(&trace, "handler"))
			grp.Post("/:id/favorite", final(&trace, "handler"))

			req := httptest.NewRequest(tc.method, tc.path, nil)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			assert.Equal(t, tc.expect, []string(trace),
				"middleware execution order drifted")
		})
	}
}
