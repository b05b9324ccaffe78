// Package chat owns chat sessions and runs chat turns against the backend.
//
// A Store holds every session, the most-recent-first order and the active
// session id, and persists them through a blobstore.Store. A TurnController
// runs one turn at a time and writes its results back into the Store.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/vango-go/vai-studio/pkg/blobstore"
	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// DefaultTitle is the title of a session that has not completed a turn.
const DefaultTitle = "New Chat"

// Snapshot is a copy of one session, safe to read without the store lock.
type Snapshot struct {
	ID       string
	Title    string
	Model    types.Model
	Messages []types.Message

	// Pending is the loading placeholder of an in-flight turn. It is never persisted.
	Pending *types.Message
}

// Summary is the list entry of a session.
type Summary struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Model    types.Model `json:"model"`
	Messages int         `json:"messages"`
}

type session struct {
	title    string
	model    types.Model
	messages []types.Message
	pending  *types.Message
	handle   core.ChatHandle
}

func (s *session) snapshot(id string) Snapshot {
	snap := Snapshot{
		ID:       id,
		Title:    s.title,
		Model:    s.model,
		Messages: types.CloneMessages(s.messages),
	}
	if s.pending != nil {
		p := s.pending.Clone()
		snap.Pending = &p
	}
	return snap
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides session id allocation.
func WithIDGenerator(fn func() string) StoreOption {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// Store holds chat sessions.
type Store struct {
	factory core.ChatFactory
	blobs   blobstore.Store
	logger  *slog.Logger
	newID   func() string

	mu        sync.Mutex
	sessions  map[string]*session
	order     []string
	active    string
	restoring bool
	// turning is set from beginTurn/beginEdit until finishTurn. Persist is
	// skipped meanwhile so no half-finished turn reaches the blob store.
	turning   bool
	observers []func(sessionID string)

	// persistMu orders snapshot+write pairs so writes land in snapshot order.
	persistMu sync.Mutex
}

// NewStore creates an empty store. Persist is a no-op until Restore completes.
func NewStore(factory core.ChatFactory, blobs blobstore.Store, opts ...StoreOption) *Store {
	s := &Store{
		factory:   factory,
		blobs:     blobs,
		logger:    slog.Default(),
		newID:     func() string { return ulid.Make().String() },
		sessions:  make(map[string]*session),
		restoring: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnChange registers fn to be called after any session changes, including
// the loading placeholder of an in-flight turn. fn runs without the store lock.
func (s *Store) OnChange(fn func(sessionID string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Store) notify(id string) {
	s.mu.Lock()
	observers := append([]func(string){}, s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(id)
	}
}

// Create starts an empty session on model, makes it active and persists.
func (s *Store) Create(ctx context.Context, model types.Model) (string, error) {
	return s.create(ctx, model, DefaultTitle, nil)
}

func (s *Store) create(ctx context.Context, model types.Model, title string, messages []types.Message) (string, error) {
	if model == "" {
		model = types.DefaultModel
	}
	if !model.Valid() {
		return "", core.NewInvalidRequestError(fmt.Sprintf("unknown model %q", model))
	}
	handle, err := s.factory.NewChat(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("create chat handle: %w", err)
	}

	id := s.newID()
	s.mu.Lock()
	s.sessions[id] = &session{
		title:    title,
		model:    model,
		messages: messages,
		handle:   handle,
	}
	s.order = append([]string{id}, s.order...)
	s.active = id
	s.mu.Unlock()

	s.logger.Debug("chat created", "chat_id", id, "model", model)
	s.notify(id)
	_ = s.persist(ctx)
	return id, nil
}

// Rename sets a session title. The title is trimmed and must not be empty.
func (s *Store) Rename(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return core.NewInvalidRequestError("title must not be empty")
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.title = title
	}
	s.mu.Unlock()
	if !ok {
		return errUnknownSession(id)
	}
	s.notify(id)
	_ = s.persist(ctx)
	return nil
}

// Delete removes a session. Deleting the active session activates the head
// of the order, or a new session when none remain.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return errUnknownSession(id)
	}
	delete(s.sessions, id)
	s.order = removeID(s.order, id)
	wasActive := s.active == id
	empty := len(s.order) == 0
	if wasActive && !empty {
		s.active = s.order[0]
	}
	if empty {
		s.active = ""
	}
	s.mu.Unlock()

	s.logger.Debug("chat deleted", "chat_id", id)
	if empty {
		if _, err := s.Create(ctx, types.DefaultModel); err != nil {
			return fmt.Errorf("replace deleted chat: %w", err)
		}
		return nil
	}
	s.notify(id)
	_ = s.persist(ctx)
	return nil
}

// SwitchModel moves a session to model and rebuilds its handle from the
// current history.
func (s *Store) SwitchModel(ctx context.Context, id string, model types.Model) error {
	if !model.Valid() {
		return core.NewInvalidRequestError(fmt.Sprintf("unknown model %q", model))
	}
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return errUnknownSession(id)
	}
	if sess.model == model {
		s.mu.Unlock()
		return nil
	}
	history := types.CloneMessages(sess.messages)
	s.mu.Unlock()

	handle, err := s.factory.NewChat(ctx, model, history)
	if err != nil {
		return fmt.Errorf("switch model: %w", err)
	}

	s.mu.Lock()
	sess, ok = s.sessions[id]
	if ok {
		sess.model = model
		sess.handle = handle
	}
	s.mu.Unlock()
	if !ok {
		return errUnknownSession(id)
	}
	s.logger.Info("chat model switched", "chat_id", id, "model", model)
	s.notify(id)
	_ = s.persist(ctx)
	return nil
}

// SetActive selects the session shown by the shell.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	if ok {
		s.active = id
	}
	s.mu.Unlock()
	if !ok {
		return errUnknownSession(id)
	}
	s.notify(id)
	return nil
}

// Active returns the active session id.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Get returns a snapshot of one session.
func (s *Store) Get(id string) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	return sess.snapshot(id), true
}

// List returns session summaries, most recent first.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.order))
	for _, id := range s.order {
		sess := s.sessions[id]
		out = append(out, Summary{ID: id, Title: sess.title, Model: sess.model, Messages: len(sess.messages)})
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// turnStart is what a turn needs from a session before calling the backend.
type turnStart struct {
	before []types.Message
	model  types.Model
	handle core.ChatHandle
}

// beginTurn appends the user message and the loading placeholder. A
// tool-intro first message is dropped from the history.
func (s *Store) beginTurn(id string, user types.Message, loading string) (turnStart, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return turnStart{}, errUnknownSession(id)
	}
	before := sess.messages
	if len(before) > 0 && before[0].Kind == types.KindToolIntro {
		before = nil
	}
	before = types.CloneMessages(before)
	placeholder := types.TextMessage(types.RoleModel, loading)
	sess.messages = append(types.CloneMessages(before), user)
	sess.pending = &placeholder
	s.turning = true
	start := turnStart{before: before, model: sess.model, handle: sess.handle}
	s.mu.Unlock()

	s.notify(id)
	return start, nil
}

// beginEdit truncates the session to [:index] and appends the edited user
// message with a placeholder. It returns the truncated history.
func (s *Store) beginEdit(id string, index int, text, loading string) (turnStart, types.Message, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return turnStart{}, types.Message{}, errUnknownSession(id)
	}
	if index < 0 || index >= len(sess.messages) {
		s.mu.Unlock()
		return turnStart{}, types.Message{}, core.NewInvalidRequestError(fmt.Sprintf("message index %d out of range", index))
	}
	orig := sess.messages[index]
	if orig.Role != types.RoleUser || orig.Kind == types.KindToolIntro {
		s.mu.Unlock()
		return turnStart{}, types.Message{}, core.NewInvalidRequestError(fmt.Sprintf("message %d is not a user message", index))
	}
	parts := types.InlineParts(orig.Parts)
	if strings.TrimSpace(text) != "" {
		parts = append(parts, types.TextPart{Text: text})
	}
	if len(parts) == 0 {
		s.mu.Unlock()
		return turnStart{}, types.Message{}, ErrEmptyTurn
	}
	user := types.Message{Role: types.RoleUser, Parts: parts}
	before := types.CloneMessages(sess.messages[:index])
	placeholder := types.TextMessage(types.RoleModel, loading)
	sess.messages = append(types.CloneMessages(before), user)
	sess.pending = &placeholder
	s.turning = true
	start := turnStart{before: before, model: sess.model, handle: sess.handle}
	s.mu.Unlock()

	s.notify(id)
	return start, user, nil
}

// finishTurn replaces the placeholder with reply. The title is derived from
// prompt on a first turn of a session still carrying the default title. A
// non-nil handle replaces the session handle.
func (s *Store) finishTurn(ctx context.Context, id string, start turnStart, user, reply types.Message, prompt string, handle core.ChatHandle) (string, bool) {
	s.mu.Lock()
	s.turning = false
	sess, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("chat deleted during turn; dropping reply", "chat_id", id)
		_ = s.persist(ctx)
		return "", false
	}
	msgs := make([]types.Message, 0, len(start.before)+2)
	msgs = append(msgs, start.before...)
	msgs = append(msgs, user, reply)
	sess.messages = msgs
	sess.pending = nil
	if handle != nil {
		sess.handle = handle
	}
	if prompt != "" && len(start.before) == 0 && sess.title == DefaultTitle {
		sess.title = DeriveTitle(prompt)
	}
	title := sess.title
	s.mu.Unlock()

	s.notify(id)
	_ = s.persist(ctx)
	return title, true
}

// rebuildHandle creates a fresh handle seeded with history.
func (s *Store) rebuildHandle(ctx context.Context, model types.Model, history []types.Message) (core.ChatHandle, error) {
	return s.factory.NewChat(ctx, model, history)
}

// titleLength is the number of runes kept from the first prompt.
const titleLength = 35

// DeriveTitle shortens a first prompt into a session title.
func DeriveTitle(prompt string) string {
	r := []rune(prompt)
	if len(r) <= titleLength {
		return prompt
	}
	return string(r[:titleLength]) + "..."
}

func errUnknownSession(id string) error {
	return core.NewNotFoundError(fmt.Sprintf("chat %q not found", id))
}

func removeID(order []string, id string) []string {
	out := order[:0:0]
	for _, v := range order {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
