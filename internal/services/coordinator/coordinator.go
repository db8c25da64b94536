// Package coordinator is the view-state layer between a shell and a
// notes.Repository: it holds what the shell shows and turns user commands
// into repository calls.
package coordinator

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"viterbi-notes/internal/services/notes"
)

type command func(ctx context.Context)

// Coordinator exposes four observable cells and fire-and-forget commands.
// Commands run one at a time, in the order they were issued, on a single
// worker goroutine that also forwards live snapshots into Notes.
type Coordinator struct {
	Notes        *Cell[[]notes.Note]
	IsLoading    *Cell[bool]
	SelectedNote *Cell[*notes.Note]
	Error        *Cell[string]

	repo notes.Repository
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	qmu     sync.Mutex
	queue   []command
	closed  bool
	wake    chan struct{}
	pending sync.WaitGroup

	// Owned by the worker goroutine.
	live     *notes.Subscriber
	stopLive func()
}

// New builds a coordinator over repo and starts loading the live collection.
// Close releases it.
func New(ctx context.Context, repo notes.Repository, log *slog.Logger) *Coordinator {
	ctx, cancel := context.WithCancel(ctx)
	c := &Coordinator{
		Notes:        newCell([]notes.Note{}),
		IsLoading:    newCell(true),
		SelectedNote: newCell[*notes.Note](nil),
		Error:        newCell(""),
		repo:         repo,
		log:          log,
		ctx:          ctx,
		cancel:       cancel,
		done:         make(chan struct{}),
		wake:         make(chan struct{}, 1),
	}
	go c.run()
	c.dispatch(c.loadNotes)
	return c
}

func (c *Coordinator) dispatch(cmd command) {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if c.closed {
		return
	}
	c.pending.Add(1)
	c.queue = append(c.queue, cmd)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Coordinator) pop() command {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	if len(c.queue) == 0 {
		return nil
	}
	cmd := c.queue[0]
	c.queue = c.queue[1:]
	return cmd
}

func (c *Coordinator) run() {
	defer close(c.done)
	defer c.detach()
	defer c.abandon()

	for {
		var liveCh chan []notes.Note
		if c.live != nil {
			liveCh = c.live.Ch
		}

		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
			for cmd := c.pop(); cmd != nil; cmd = c.pop() {
				cmd(c.ctx)
				// The repository published before returning; take that
				// snapshot now so Wait observes it.
				c.drainLive()
				c.pending.Done()
			}
		case list, ok := <-liveCh:
			c.receive(list, ok)
		}
	}
}

// abandon drops commands that will never run so Wait does not hang.
func (c *Coordinator) abandon() {
	c.qmu.Lock()
	defer c.qmu.Unlock()
	c.closed = true
	for range c.queue {
		c.pending.Done()
	}
	c.queue = nil
}

func (c *Coordinator) receive(list []notes.Note, ok bool) {
	if !ok {
		c.live, c.stopLive = nil, nil
		return
	}
	c.Notes.set(list)
	c.IsLoading.set(false)
}

func (c *Coordinator) drainLive() {
	for c.live != nil {
		select {
		case list, ok := <-c.live.Ch:
			c.receive(list, ok)
		default:
			return
		}
	}
}

func (c *Coordinator) detach() {
	if c.stopLive != nil {
		c.stopLive()
	}
	c.live, c.stopLive = nil, nil
}

func (c *Coordinator) fail(op Op, err error) {
	c.log.Error("notes command failed", "op", string(op), "error", err)
	c.Error.set(Message(op, err))
}

func (c *Coordinator) loadNotes(ctx context.Context) {
	c.detach()
	c.IsLoading.set(true)

	sub, stop, err := c.repo.Watch(ctx)
	if err != nil {
		c.fail(OpLoad, err)
		c.IsLoading.set(false)
		return
	}
	c.live, c.stopLive = sub, stop
}

// CreateNote saves a new note. It does nothing when title and content are
// both blank; a blank title alone becomes "Untitled".
func (c *Coordinator) CreateNote(title, content string) {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(content) == "" {
		return
	}
	if strings.TrimSpace(title) == "" {
		title = notes.UntitledTitle
	}
	n := notes.NewNote(title, content)
	c.dispatch(func(ctx context.Context) {
		if err := c.repo.Save(ctx, n); err != nil {
			c.fail(OpCreate, err)
		}
	})
}

// UpdateNote saves n with a refreshed UpdatedAt
func (c *Coordinator) UpdateNote(n notes.Note) {
	c.dispatch(func(ctx context.Context) {
		n.UpdatedAt = notes.Touch(n.UpdatedAt)
		if err := c.repo.Save(ctx, n); err != nil {
			c.fail(OpUpdate, err)
		}
	})
}

// DeleteNote removes the note with id
func (c *Coordinator) DeleteNote(id string) {
	c.dispatch(func(ctx context.Context) {
		if err := c.repo.Delete(ctx, id); err != nil {
			c.fail(OpDelete, err)
		}
	})
}

// ToggleFavorite flips the favorite flag of the note with id
func (c *Coordinator) ToggleFavorite(id string) {
	c.dispatch(func(ctx context.Context) {
		if err := c.repo.ToggleFavorite(ctx, id); err != nil {
			c.fail(OpToggle, err)
		}
	})
}

// SelectNote sets SelectedNote; nil clears it
func (c *Coordinator) SelectNote(n *notes.Note) {
	if n != nil {
		cp := *n
		n = &cp
	}
	c.SelectedNote.set(n)
}

// SearchNotes with a blank query resumes the live collection. Any other
// query replaces Notes with a one-shot result that later writes do not
// refresh, until the next blank search. A failed search keeps whatever
// Notes was showing, live or not.
func (c *Coordinator) SearchNotes(query string) {
	c.dispatch(func(ctx context.Context) {
		if strings.TrimSpace(query) == "" {
			c.loadNotes(ctx)
			return
		}
		list, err := c.repo.Search(ctx, query)
		if err != nil {
			c.fail(OpSearch, err)
			return
		}
		c.detach()
		c.Notes.set(list)
	})
}

// ClearError clears Error
func (c *Coordinator) ClearError() {
	c.Error.set("")
}

// Wait blocks until every command issued so far has run.
func (c *Coordinator) Wait() {
	c.pending.Wait()
}

// Close stops the worker and detaches from the repository. Commands still
// queued are dropped.
func (c *Coordinator) Close() {
	c.cancel()
	<-c.done
}
