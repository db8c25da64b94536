package httperr

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"not found", notes.ErrNoteNotFound, 404, "note not found"},
		{"wrapped not found", fmt.Errorf("get 42: %w", notes.ErrNoteNotFound), 404, "note not found"},
		{"empty note", notes.ErrEmptyNote, 400, notes.ErrEmptyNote.Error()},
		{"already mapped", ErrTooManyRequests, 429, "Too Many Requests"},
		{"service failure", notes.ErrCreateNote, 500, "failed to create note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := From(tt.err)
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.message, e.Message)
		})
	}
}

func TestHandler(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"typed error", Fail(ErrUnauthorized), 401, `{"error":"Unauthorized"}`},
		{"fiber error", fiber.NewError(fiber.StatusMethodNotAllowed, "Method Not Allowed"), 405, `{"error":"Method Not Allowed"}`},
		{"anything else", errors.New("boom"), 500, `{"error":"Internal Server Error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: Handler})
			app.Get("/", func(*fiber.Ctx) error { return tt.err })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.JSONEq(t, tt.body, string(body))
		})
	}
}
