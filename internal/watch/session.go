// Package watch holds the watch-page state for the opened item: the assistant chat,
// the AI summary and the comment threads.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/cache"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

var (
	// ErrEmptyText is returned for blank chat messages and comments.
	ErrEmptyText = errors.New("text must not be empty")
	// ErrNoItem is returned when no item has been opened.
	ErrNoItem = errors.New("no item is open")
)

// Chatter answers one chat turn. It never fails.
type Chatter interface {
	Chat(ctx context.Context, item model.ContentItem, history []model.ChatMessage, message string) string
}

// Summarizer produces an item summary.
type Summarizer interface {
	Summarize(ctx context.Context, title, description string) (*model.Summary, error)
}

// Session is the watch-page state of one opened item. Opening a different item
// starts a new session; replies and summaries that belong to a replaced session
// are dropped.
type Session struct {
	chatter    Chatter
	summarizer Summarizer
	cache      *cache.Tiered // Optional summary cache
	now        func() time.Time

	mu      sync.Mutex
	item    *model.ContentItem
	epoch   uint64
	chat    []model.ChatMessage
	summary *model.Summary
	tail    chan struct{} // Closed when the last queued turn finishes
}

// NewSession creates an empty session. c may be nil.
func NewSession(chatter Chatter, summarizer Summarizer, c *cache.Tiered) *Session {
	return &Session{chatter: chatter, summarizer: summarizer, cache: c, now: time.Now}
}

// Open binds the session to item. Reopening the current item keeps its chat and summary.
func (s *Session) Open(item model.ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.item != nil && s.item.ID == item.ID {
		return
	}
	s.item = &item
	s.epoch++
	s.chat = nil
	s.summary = nil
	s.tail = nil
}

// Item returns the bound item.
func (s *Session) Item() (model.ContentItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.item == nil {
		return model.ContentItem{}, false
	}
	return *s.item, true
}

// Chat returns a copy of the conversation.
func (s *Session) Chat() []model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

// Summary returns the summary if one has been produced for this session.
func (s *Session) Summary() *model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Send posts a user message and waits for the assistant reply. The user message is
// visible immediately; turns are answered one at a time in send order, and each
// reply is placed right after its message. The reply is nil when the session was
// replaced while waiting.
func (s *Session) Send(ctx context.Context, text string) (model.ChatMessage, *model.ChatMessage, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "watch.Send")
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return model.ChatMessage{}, nil, ErrEmptyText
	}

	s.mu.Lock()
	if s.item == nil {
		s.mu.Unlock()
		return model.ChatMessage{}, nil, ErrNoItem
	}
	userMsg := s.message(model.RoleUser, text)
	s.chat = append(s.chat, userMsg)
	epoch := s.epoch
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.mu.Unlock()
	defer close(done)

	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			return userMsg, nil, ctx.Err()
		}
	}

	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		return userMsg, nil, nil
	}
	item := *s.item
	idx := s.indexOf(userMsg.ID)
	history := make([]model.ChatMessage, idx)
	copy(history, s.chat[:idx])
	s.mu.Unlock()

	replyText := s.chatter.Chat(ctx, item, history, text)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		slog.DebugContext(ctx, "dropping chat reply for replaced session", "item_id", item.ID)
		return userMsg, nil, nil
	}
	reply := s.message(model.RoleAssistant, replyText)
	at := s.indexOf(userMsg.ID) + 1
	s.chat = append(s.chat, model.ChatMessage{})
	copy(s.chat[at+1:], s.chat[at:])
	s.chat[at] = reply
	return userMsg, &reply, nil
}

// Summarize returns the item summary, computing it at most once per item across
// sessions when a cache is configured.
func (s *Session) Summarize(ctx context.Context) (*model.Summary, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "watch.Summarize")
	defer span.End()

	s.mu.Lock()
	if s.item == nil {
		s.mu.Unlock()
		return nil, ErrNoItem
	}
	item := *s.item
	epoch := s.epoch
	s.mu.Unlock()

	load := func(ctx context.Context) (*model.Summary, error) {
		return s.summarizer.Summarize(ctx, item.Title, item.Description)
	}
	var (
		summary *model.Summary
		err     error
	)
	if s.cache != nil {
		summary, err = cache.GetOrLoad(ctx, s.cache, cache.Key("summary", item.ID), load)
	} else {
		summary, err = load(ctx)
	}
	if err != nil {
		slog.WarnContext(ctx, "summary failed", "item_id", item.ID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	if epoch == s.epoch {
		s.summary = summary
	}
	s.mu.Unlock()
	return summary, nil
}

func (s *Session) message(role model.Role, text string) model.ChatMessage {
	return model.ChatMessage{
		ID:        ulid.Make().String(),
		Role:      role,
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
}

// indexOf returns the position of id in the chat. Callers hold mu.
func (s *Session) indexOf(id string) int {
	for i, m := range s.chat {
		if m.ID == id {
			return i
		}
	}
	return len(s.chat)
}
