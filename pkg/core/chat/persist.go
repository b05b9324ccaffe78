package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vango-go/vai-studio/pkg/core"
	"github.com/vango-go/vai-studio/pkg/core/types"
)

// Blob store keys of the persisted state.
const (
	ChatsKey = "gemini_chats"
	OrderKey = "gemini_chat_order"
)

const schemaVersion = 1

var errVersion = errors.New("unsupported chat store version")

type persistedSession struct {
	Title    string          `json:"title"`
	Messages []types.Message `json:"messages"`
	Model    types.Model     `json:"model"`
}

type persistedChats struct {
	Version int                         `json:"version"`
	Chats   map[string]persistedSession `json:"chats"`
}

// Persist writes every session and the order in one atomic PutAll. It is a
// no-op until Restore has completed and while a turn is in flight. The turn
// persists when it finishes.
func (s *Store) Persist(ctx context.Context) error {
	return s.persist(ctx)
}

func (s *Store) persist(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.restoring || s.turning {
		s.mu.Unlock()
		return nil
	}
	doc := persistedChats{Version: schemaVersion, Chats: make(map[string]persistedSession, len(s.sessions))}
	for id, sess := range s.sessions {
		doc.Chats[id] = persistedSession{
			Title:    sess.title,
			Messages: types.CloneMessages(sess.messages),
			Model:    sess.model,
		}
	}
	order := append([]string{}, s.order...)
	s.mu.Unlock()

	chats, err := json.Marshal(doc)
	if err != nil {
		s.logger.Error("failed to encode chats", "error", err)
		return fmt.Errorf("encode chats: %w", err)
	}
	orderJSON, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode chat order: %w", err)
	}
	if err := s.blobs.PutAll(ctx, map[string][]byte{ChatsKey: chats, OrderKey: orderJSON}); err != nil {
		s.logger.Error("failed to save chats", "error", err)
		return fmt.Errorf("save chats: %w", err)
	}
	return nil
}

// Restore loads persisted sessions and rebuilds their chat handles. It fails
// open: any read, decode or handle error discards the stored state and starts
// one fresh session. The active session becomes the head of the order.
func (s *Store) Restore(ctx context.Context) error {
	loaded, order, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load chats from storage; starting fresh", "error", err)
		loaded, order = nil, nil
	}

	s.mu.Lock()
	s.sessions = make(map[string]*session, len(loaded))
	for id, sess := range loaded {
		s.sessions[id] = sess
	}
	s.order = order
	s.active = ""
	if len(order) > 0 {
		s.active = order[0]
	}
	s.restoring = false
	s.mu.Unlock()

	if len(order) == 0 {
		if _, err := s.Create(ctx, types.DefaultModel); err != nil {
			return fmt.Errorf("create initial chat: %w", err)
		}
		return nil
	}
	s.logger.Info("chats restored", "count", len(order))
	s.notify(order[0])
	return nil
}

func (s *Store) load(ctx context.Context) (map[string]*session, []string, error) {
	blobs, err := s.blobs.GetAll(ctx, ChatsKey, OrderKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read chats: %w", err)
	}
	rawChats, okChats := blobs[ChatsKey]
	rawOrder, okOrder := blobs[OrderKey]
	if !okChats && !okOrder {
		return nil, nil, nil
	}

	var doc persistedChats
	if err := json.Unmarshal(rawChats, &doc); err != nil {
		return nil, nil, fmt.Errorf("decode chats: %w", err)
	}
	if doc.Version != schemaVersion {
		return nil, nil, fmt.Errorf("%w: %d", errVersion, doc.Version)
	}
	var order []string
	if okOrder {
		if err := json.Unmarshal(rawOrder, &order); err != nil {
			return nil, nil, fmt.Errorf("decode chat order: %w", err)
		}
	}
	order = reconcileOrder(order, doc.Chats)

	sessions := make(map[string]*session, len(order))
	for _, id := range order {
		p := doc.Chats[id]
		model := p.Model
		if !model.Valid() {
			return nil, nil, core.NewInvalidRequestError(fmt.Sprintf("chat %q has unknown model %q", id, model))
		}
		title := p.Title
		if title == "" {
			title = DefaultTitle
		}
		handle, err := s.factory.NewChat(ctx, model, p.Messages)
		if err != nil {
			return nil, nil, fmt.Errorf("rebuild chat %q: %w", id, err)
		}
		sessions[id] = &session{title: title, model: model, messages: p.Messages, handle: handle}
	}
	return sessions, order, nil
}

// reconcileOrder keeps ids present in chats once each, then appends stored
// chats missing from the order, newest id first.
func reconcileOrder(order []string, chats map[string]persistedSession) []string {
	seen := make(map[string]bool, len(chats))
	out := make([]string, 0, len(chats))
	for _, id := range order {
		if _, ok := chats[id]; !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	var missing []string
	for id := range chats {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(missing)))
	return append(out, missing...)
}
