package notes

import (
	"context"

	"viterbi-notes/cmd/server/handlers/handlerutil"
	"viterbi-notes/internal/services/notes"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// Service defines the interface for notes service
type Service interface {
	List(ctx context.Context, req notes.ListNotesRequest) (*notes.ListNotesResponse, error)
	Get(ctx context.Context, id string) (*notes.NoteResponse, error)
	Count(ctx context.Context) (*notes.CountResponse, error)
	Create(ctx context.Context, req notes.CreateNoteRequest) (*notes.NoteResponse, error)
	Update(ctx context.Context, id string, req notes.UpdateNoteRequest) (*notes.NoteResponse, error)
	Delete(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, id string) (*notes.NoteResponse, error)
}

// Handlers contains the notes HTTP handlers
type Handlers struct {
	service   Service
	validator *validator.Validate
}

// NewHandlers creates new notes handlers
func NewHandlers(service Service, validator *validator.Validate) *Handlers {
	return &Handlers{
		service:   service,
		validator: validator,
	}
}

// Create handles note creation
// @Summary Create a new note
// @Tags notes
// @Accept json
// @Produce json
// @Param request body notes.CreateNoteRequest true "Create note request"
// @Success 201 {object} notes.NoteResponse
// @Failure 400 {object} httperr.E
// @Router /notes [post]
func (h *Handlers) Create(c *fiber.Ctx) error {
	var req notes.CreateNoteRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Create"); err != nil {
		return err
	}

	resp, err := h.service.Create(c.UserContext(), req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Create", "")
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

// List handles notes listing
// @Summary List notes newest first, optionally searched and restricted to favorites
// @Tags notes
// @Produce json
// @Param q query string false "Case-insensitive search in title or content"
// @Param favorites query bool false "Only favorite notes"
// @Success 200 {object} notes.ListNotesResponse
// @Failure 400 {object} httperr.E
// @Router /notes [get]
func (h *Handlers) List(c *fiber.Ctx) error {
	var req notes.ListNotesRequest
	if err := handlerutil.ParseAndValidateQuery(c, &req, h.validator, "List"); err != nil {
		return err
	}

	resp, err := h.service.List(c.UserContext(), req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "List", "")
	}

	return c.JSON(resp)
}

// Get returns one note
// @Summary Get a note
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} notes.NoteResponse
// @Failure 404 {object} httperr.E
// @Router /notes/{id} [get]
func (h *Handlers) Get(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "Get")
	if err != nil {
		return err
	}

	resp, err := h.service.Get(c.UserContext(), noteID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Get", noteID)
	}

	return c.JSON(resp)
}

// Count reports how many notes are stored
// @Summary Count notes
// @Tags notes
// @Produce json
// @Success 200 {object} notes.CountResponse
// @Router /notes/count [get]
func (h *Handlers) Count(c *fiber.Ctx) error {
	resp, err := h.service.Count(c.UserContext())
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Count", "")
	}

	return c.JSON(resp)
}

// Update handles note updates
// @Summary Update a note
// @Tags notes
// @Accept json
// @Produce json
// @Param id path string true "Note ID"
// @Param request body notes.UpdateNoteRequest true "Update note request"
// @Success 200 {object} notes.NoteResponse
// @Failure 400 {object} httperr.E
// @Failure 404 {object} httperr.E
// @Router /notes/{id} [put]
func (h *Handlers) Update(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "Update")
	if err != nil {
		return err
	}

	var req notes.UpdateNoteRequest
	if err := handlerutil.ParseAndValidateBody(c, &req, h.validator, "Update"); err != nil {
		return err
	}

	resp, err := h.service.Update(c.UserContext(), noteID, req)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "Update", noteID)
	}

	return c.JSON(resp)
}

// Delete handles note deletion
// @Summary Delete a note
// @Tags notes
// @Param id path string true "Note ID"
// @Success 204
// @Failure 404 {object} httperr.E
// @Router /notes/{id} [delete]
func (h *Handlers) Delete(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "Delete")
	if err != nil {
		return err
	}

	if err := h.service.Delete(c.UserContext(), noteID); err != nil {
		return handlerutil.HandleServiceError(c, err, "Delete", noteID)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleFavorite flips a note's favorite flag
// @Summary Toggle favorite
// @Tags notes
// @Produce json
// @Param id path string true "Note ID"
// @Success 200 {object} notes.NoteResponse
// @Failure 404 {object} httperr.E
// @Router /notes/{id}/favorite [post]
func (h *Handlers) ToggleFavorite(c *fiber.Ctx) error {
	noteID, err := handlerutil.ExtractNoteID(c, "ToggleFavorite")
	if err != nil {
		return err
	}

	resp, err := h.service.ToggleFavorite(c.UserContext(), noteID)
	if err != nil {
		return handlerutil.HandleServiceError(c, err, "ToggleFavorite", noteID)
	}

	return c.JSON(resp)
}
