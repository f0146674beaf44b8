// Package widget composes session state, profile persistence, page context
// and the backend client into the tutor widget controller.
package widget

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/textbook-tutor/internal/backend"
	"github.com/ashureev/textbook-tutor/internal/domain"
	"github.com/ashureev/textbook-tutor/internal/session"
)

const persistTimeout = 5 * time.Second

// Backend is the subset of the backend client the controller drives.
type Backend interface {
	Chat(ctx context.Context, message, selection string, profile *domain.UserProfile) (backend.ChatResponse, error)
	Translate(ctx context.Context, content string) (backend.ContentResponse, error)
	Personalize(ctx context.Context, content string, profile domain.UserProfile) (backend.ContentResponse, error)
}

// ProfileStore loads and saves the single profile slot.
type ProfileStore interface {
	Load(ctx context.Context) (*domain.UserProfile, bool)
	Save(ctx context.Context, p domain.UserProfile) error
}

// ContextSource provides page selection and action content.
type ContextSource interface {
	CurrentSelection() string
	ResolveActionContent() string
}

// Options configures a Controller.
type Options struct {
	Logger *slog.Logger
	// OnChange receives a snapshot after every asynchronous state change
	// (backend completions). It is called without the controller lock held.
	OnChange func(session.Snapshot)
	NewID    func() string
}

// Controller routes user actions into session transitions and backend calls.
// All state mutations are serialized; backend calls run on their own goroutines
// and resolve back into the state under the same lock.
type Controller struct {
	mu       sync.Mutex
	state    *session.State
	backend  Backend
	profiles ProfileStore
	page     ContextSource
	logger   *slog.Logger
	onChange func(session.Snapshot)

	ctx      context.Context
	cancel   context.CancelFunc
	inflight map[uint64]context.CancelFunc
	wg       sync.WaitGroup
	version  uint64
}

// New loads the persisted profile and creates a controller for one page load.
// Backend calls are bound to ctx; Close cancels them.
func New(ctx context.Context, b Backend, profiles ProfileStore, page ContextSource, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p, _ := profiles.Load(ctx)
	var stateOpts []session.Option
	if opts.NewID != nil {
		stateOpts = append(stateOpts, session.WithIDFunc(opts.NewID))
	}

	cctx, cancel := context.WithCancel(ctx)
	return &Controller{
		state:    session.New(p, stateOpts...),
		backend:  b,
		profiles: profiles,
		page:     page,
		logger:   logger,
		onChange: opts.OnChange,
		ctx:      cctx,
		cancel:   cancel,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Snapshot returns the current state for presentation.
func (c *Controller) Snapshot() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// snapshotLocked stamps each snapshot with the next version, so a snapshot
// with a higher version always reflects a later state.
func (c *Controller) snapshotLocked() session.Snapshot {
	c.version++
	snap := c.state.Snapshot(c.page.CurrentSelection() != "")
	snap.Version = c.version
	return snap
}

// Toggle opens or closes the widget.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Toggle()
}

// SetInput replaces the chat input buffer.
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetInput(text)
}

// SetFormField updates a profile form field.
func (c *Controller) SetFormField(field session.FormField, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.SetFormField(field, value)
}

// Send submits the input buffer as a chat message.
func (c *Controller) Send() []session.Effect {
	return c.transition(func(s *session.State) []session.Effect {
		return s.Submit(c.page.CurrentSelection())
	})
}

// ClickSuggestion submits suggestion chip index.
func (c *Controller) ClickSuggestion(index int) []session.Effect {
	return c.transition(func(s *session.State) []session.Effect {
		return s.ClickSuggestion(index, c.page.CurrentSelection())
	})
}

// ContentAction runs translate or personalize on the selection or page.
func (c *Controller) ContentAction(kind session.RequestKind) []session.Effect {
	return c.transition(func(s *session.State) []session.Effect {
		return s.ContentAction(kind, c.page.ResolveActionContent())
	})
}

// SaveProfile validates and persists the profile form.
func (c *Controller) SaveProfile() []session.Effect {
	return c.transition((*session.State).SaveProfile)
}

// EditProfile shows the profile form.
func (c *Controller) EditProfile() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.EditProfile()
}

// CancelEdit hides the profile form without saving.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.CancelEdit()
}

// RequestClear asks for confirmation before clearing the chat.
func (c *Controller) RequestClear() []session.Effect {
	return c.transition((*session.State).RequestClear)
}

// ConfirmClear answers the clear confirmation.
func (c *Controller) ConfirmClear(confirmed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ConfirmClear(confirmed)
}

// Scroll recomputes the scroll affordance.
func (c *Controller) Scroll(m session.ScrollMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Scroll(m)
}

// ScrollToBottom handles a click on the scroll affordance.
func (c *Controller) ScrollToBottom() []session.Effect {
	return c.transition((*session.State).ScrollToBottom)
}

// Cancel abandons the outstanding backend request.
func (c *Controller) Cancel() []session.Effect {
	return c.transition((*session.State).Cancel)
}

// Wait blocks until every started backend call has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels outstanding backend calls and waits for them to return.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// transition applies fn under the lock, performs internal effects and returns
// the ones meant for the presenter. Profile writes happen after unlocking.
func (c *Controller) transition(fn func(*session.State) []session.Effect) []session.Effect {
	c.mu.Lock()
	var out []session.Effect
	var saves []domain.UserProfile
	for _, e := range fn(c.state) {
		switch e.Type {
		case session.EffectRequest:
			c.startLocked(*e.Request)
		case session.EffectCancelRequest:
			if cancel, ok := c.inflight[e.Ticket]; ok {
				cancel()
				delete(c.inflight, e.Ticket)
			}
			c.logger.Debug("backend request cancelled", "ticket", e.Ticket)
		case session.EffectPersistProfile:
			saves = append(saves, *e.Profile)
		default:
			out = append(out, e)
		}
	}
	c.mu.Unlock()

	for _, p := range saves {
		c.persist(p)
	}
	return out
}

func (c *Controller) persist(p domain.UserProfile) {
	ctx, cancel := context.WithTimeout(c.ctx, persistTimeout)
	defer cancel()
	if err := c.profiles.Save(ctx, p); err != nil {
		c.logger.Warn("failed to persist profile", "error", err)
	}
}

func (c *Controller) startLocked(req session.Request) {
	ctx, cancel := context.WithCancel(c.ctx)
	c.inflight[req.Ticket] = cancel
	c.wg.Add(1)

	c.logger.Debug("backend request started", "ticket", req.Ticket, "kind", req.Kind)
	go func() {
		defer c.wg.Done()
		defer cancel()
		reply, err := c.call(ctx, req)
		c.settle(req.Ticket, reply, err)
	}()
}

func (c *Controller) call(ctx context.Context, req session.Request) (session.Reply, error) {
	switch req.Kind {
	case session.KindChat:
		resp, err := c.backend.Chat(ctx, req.Message, req.Context, req.Profile)
		if err != nil {
			return session.Reply{}, err
		}
		return session.Reply{Content: resp.Reply, Sources: resp.Sources}, nil
	case session.KindTranslate:
		resp, err := c.backend.Translate(ctx, req.Content)
		if err != nil {
			return session.Reply{}, err
		}
		return session.Reply{Content: resp.Content}, nil
	default:
		var profile domain.UserProfile
		if req.Profile != nil {
			profile = *req.Profile
		}
		resp, err := c.backend.Personalize(ctx, req.Content, profile)
		if err != nil {
			return session.Reply{}, err
		}
		return session.Reply{Content: resp.Content}, nil
	}
}

func (c *Controller) settle(ticket uint64, reply session.Reply, err error) {
	c.mu.Lock()
	delete(c.inflight, ticket)
	var applied bool
	if err != nil {
		applied = c.state.Fail(ticket)
	} else {
		applied = c.state.Resolve(ticket, reply)
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !applied {
		c.logger.Debug("discarding stale backend result", "ticket", ticket)
		return
	}
	if c.onChange != nil && c.ctx.Err() == nil {
		c.onChange(snap)
	}
}
