// Package handlerutil holds the request plumbing shared by the HTTP handlers.
package handlerutil

import (
	"viterbi-notes/cmd/server/ctxkeys"
	"viterbi-notes/cmd/server/handlers/httperr"
	"viterbi-notes/internal/logger"
	"viterbi-notes/internal/services/notes"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Subject returns the verified token subject, or "" when auth is disabled
func Subject(c *fiber.Ctx) string {
	sub, _ := c.Locals(ctxkeys.SubjectKey).(string)
	return sub
}

// ParseAndValidateBody parses request body and validates it
func ParseAndValidateBody(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.BodyParser(req); err != nil {
		logger.L().Warn("failed to parse request body", "handler", handlerName, "subject", Subject(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Warn("request validation failed", "handler", handlerName, "subject", Subject(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ParseAndValidateQuery parses query parameters and validates them
func ParseAndValidateQuery(c *fiber.Ctx, req any, validator *validator.Validate, handlerName string) error {
	if err := c.QueryParser(req); err != nil {
		logger.L().Warn("failed to parse query params", "handler", handlerName, "subject", Subject(c), "error", err)
		return httperr.Fail(httperr.ErrBadRequest)
	}

	if err := validator.Struct(req); err != nil {
		logger.L().Warn("query validation failed", "handler", handlerName, "subject", Subject(c), "error", err)
		return httperr.InvalidInput(err)
	}

	return nil
}

// ExtractNoteID returns the :id route parameter. Note ids are opaque, so
// only a missing parameter is rejected.
func ExtractNoteID(c *fiber.Ctx, handlerName string) (string, error) {
	noteID := c.Params("id")
	if noteID == "" {
		logger.L().Warn("missing note ID parameter", "handler", handlerName, "path", c.Path())
		return "", httperr.Fail(httperr.From(notes.ErrNoteNotFound))
	}
	return noteID, nil
}

// HandleServiceError logs a service failure at a level matching its status
// and returns the mapped HTTP error
func HandleServiceError(c *fiber.Ctx, err error, handlerName, noteID string) error {
	logFields := []any{"handler", handlerName, "subject", Subject(c), "error", err}
	if noteID != "" {
		logFields = append(logFields, "note_id", noteID)
	}

	e := httperr.From(err)
	switch {
	case e.Status == fiber.StatusNotFound:
		logger.L().Info("note not found", logFields...)
	case e.Status < fiber.StatusInternalServerError:
		logger.L().Info("request rejected", logFields...)
	default:
		logger.L().Error("service operation failed", logFields...)
	}
	return httperr.Fail(e)
}
