package notes

import (
	"context"
	"errors"
	"log/slog"

	"viterbi-notes/internal/utils/sanitize"
)

// Service handles notes business logic for the HTTP shell
type Service struct {
	repo Repository
	log  *slog.Logger
}

// NewService creates a new notes service
func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// CreateNoteRequest represents a note creation request
type CreateNoteRequest struct {
	Title   string `json:"title" validate:"max=200" example:"Meeting Notes"`
	Content string `json:"content" validate:"max=100000" example:"Remember to discuss the quarterly targets"`
}

// UpdateNoteRequest replaces a note's text. A nil IsFavorite keeps the stored flag.
type UpdateNoteRequest struct {
	Title      string `json:"title" validate:"max=200" example:"Updated Meeting Notes"`
	Content    string `json:"content" validate:"max=100000" example:"Updated content for the meeting"`
	IsFavorite *bool  `json:"isFavorite,omitempty" example:"true"`
}

// ListNotesRequest represents a list notes request
type ListNotesRequest struct {
	Q         string `query:"q"         validate:"omitempty,max=256" example:"meeting"`
	Favorites bool   `query:"favorites" example:"false"`
}

// NoteResponse represents a single note response
type NoteResponse struct {
	Note Note `json:"note"`
}

// ListNotesResponse represents a list of notes response
type ListNotesResponse struct {
	Notes []Note `json:"notes"`
	Count int    `json:"count" example:"3"`
}

// CountResponse reports how many notes are stored
type CountResponse struct {
	Count int `json:"count" example:"3"`
}

// List returns a snapshot of the notes matching req, newest first
func (s *Service) List(ctx context.Context, req ListNotesRequest) (*ListNotesResponse, error) {
	list, err := s.repo.Search(ctx, req.Q)
	if err != nil {
		s.log.Error(ErrListNotes.Error(), "error", err, "q", req.Q)
		return nil, ErrListNotes
	}
	if req.Favorites {
		list = Filter(list, IsFavorite)
	}
	return &ListNotesResponse{Notes: list, Count: len(list)}, nil
}

// Get returns the note with id
func (s *Service) Get(ctx context.Context, id string) (*NoteResponse, error) {
	n, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &NoteResponse{Note: n}, nil
}

func (s *Service) find(ctx context.Context, id string) (Note, error) {
	n, ok, err := s.repo.GetByID(ctx, id)
	if err != nil {
		s.log.Error("failed to get note", "error", err, "note_id", id)
		return Note{}, ErrListNotes
	}
	if !ok {
		return Note{}, ErrNoteNotFound
	}
	return n, nil
}

// Create stores a new note. A blank title becomes UntitledTitle; a note with
// neither title nor content is rejected.
func (s *Service) Create(ctx context.Context, req CreateNoteRequest) (*NoteResponse, error) {
	title := sanitize.Title(req.Title)
	content := sanitize.Content(req.Content)
	if title == "" && content == "" {
		return nil, ErrEmptyNote
	}
	if title == "" {
		title = UntitledTitle
	}

	note := NewNote(title, content)
	if err := s.repo.Save(ctx, note); err != nil {
		s.log.Error(ErrCreateNote.Error(), "error", err)
		return nil, ErrCreateNote
	}

	return &NoteResponse{Note: note}, nil
}

// Update replaces the title and content of an existing note, keeping its
// CreatedAt and refreshing UpdatedAt
func (s *Service) Update(ctx context.Context, id string, req UpdateNoteRequest) (*NoteResponse, error) {
	note, err := s.find(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found for update", "note_id", id)
		}
		return nil, err
	}

	title := sanitize.Title(req.Title)
	if title == "" {
		title = UntitledTitle
	}
	note.Title = title
	note.Content = sanitize.Content(req.Content)
	if req.IsFavorite != nil {
		note.IsFavorite = *req.IsFavorite
	}
	note.UpdatedAt = Touch(note.UpdatedAt)

	if err := s.repo.Save(ctx, note); err != nil {
		s.log.Error(ErrUpdateNote.Error(), "error", err, "note_id", id)
		return nil, ErrUpdateNote
	}

	return &NoteResponse{Note: note}, nil
}

// Delete removes a note
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		if errors.Is(err, ErrNoteNotFound) {
			s.log.Info("note not found for delete", "note_id", id)
		}
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error(ErrDeleteNote.Error(), "error", err, "note_id", id)
		return ErrDeleteNote
	}
	return nil
}

// ToggleFavorite flips a note's favorite flag and returns the stored result
func (s *Service) ToggleFavorite(ctx context.Context, id string) (*NoteResponse, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	if err := s.repo.ToggleFavorite(ctx, id); err != nil {
		s.log.Error(ErrUpdateNote.Error(), "error", err, "note_id", id)
		return nil, ErrUpdateNote
	}

	return s.Get(ctx, id)
}

// Count returns the number of stored notes
func (s *Service) Count(ctx context.Context) (*CountResponse, error) {
	n, err := s.repo.Count(ctx)
	if err != nil {
		s.log.Error("failed to count notes", "error", err)
		return nil, ErrListNotes
	}
	return &CountResponse{Count: n}, nil
}

// Watch subscribes to live snapshots, optionally favorites only
func (s *Service) Watch(ctx context.Context, favorites bool) (*Subscriber, func(), error) {
	if favorites {
		return s.repo.WatchFavorites(ctx)
	}
	return s.repo.Watch(ctx)
}

// Stats reports hub counters when the repository exposes them
func (s *Service) Stats() (subscribers int, coalesced uint64, ok bool) {
	hs, ok := s.repo.(HubStats)
	if !ok {
		return 0, 0, false
	}
	subscribers, coalesced = hs.Stats()
	return subscribers, coalesced, true
}
