package httperr

import (
	"errors"

	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"

	"github.com/gofiber/fiber/v2"
)

// E is the JSON body of every failed request
type E struct {
	Status  int    `json:"-" example:"404"`
	Message string `json:"error" example:"note not found"`
}

func (e E) Error() string {
	return e.Message
}

// JSON writes the error with its status
func (e E) JSON(c *fiber.Ctx) error {
	return c.Status(e.Status).JSON(e)
}

// Fail returns the error for Fiber's global error handler to process
func Fail(err E) error {
	return err
}

// InvalidInput reports a request that failed validation
func InvalidInput(err error) error {
	return Fail(E{
		Status:  fiber.StatusBadRequest,
		Message: "Invalid input: " + err.Error(),
	})
}

// Fixed responses
var (
	ErrBadRequest             = E{Status: fiber.StatusBadRequest, Message: "Bad Request"}
	ErrUnauthorized           = E{Status: fiber.StatusUnauthorized, Message: "Unauthorized"}
	ErrTooManyRequests        = E{Status: fiber.StatusTooManyRequests, Message: "Too Many Requests"}
	ErrInternal               = E{Status: fiber.StatusInternalServerError, Message: "Internal Server Error"}
	ErrWebSocketUpgradeNeeded = E{Status: fiber.StatusBadRequest, Message: "WebSocket upgrade required"}
)

// From maps an error returned by the notes service to its response.
// Absent notes are 404, rejected input is 400 and the rest are 500 with
// the service's own message, which never carries driver details.
func From(err error) E {
	var e E
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, notes.ErrNoteNotFound):
		return E{Status: fiber.StatusNotFound, Message: notes.ErrNoteNotFound.Error()}
	case errors.Is(err, notes.ErrEmptyNote):
		return E{Status: fiber.StatusBadRequest, Message: notes.ErrEmptyNote.Error()}
	default:
		return E{Status: fiber.StatusInternalServerError, Message: err.Error()}
	}
}

// Handler is the global error handler for Fiber
func Handler(c *fiber.Ctx, err error) error {
	var e E
	if errors.As(err, &e) {
		return e.JSON(c)
	}

	var fiberError *fiber.Error
	if errors.As(err, &fiberError) {
		return E{Status: fiberError.Code, Message: fiberError.Message}.JSON(c)
	}

	logger.L().Error("unhandled error", "path", c.Path(), "method", c.Method(), "error", err)
	return ErrInternal.JSON(c)
}
