package watch

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

// CommentAuthor labels comments posted through the service.
const CommentAuthor = "You"

// DefaultComments seeds the thread of an item that carries no comments of its own.
func DefaultComments() []model.Comment {
	return []model.Comment{
		{ID: "c1", Author: "QuantumExplorer", Text: "This is absolutely mind-blowing content!", Timestamp: "2 hours ago", Likes: 142},
		{ID: "c2", Author: "FutureVoyager", Text: "I love how the AI explains the complex parts.", Timestamp: "1 hour ago", Likes: 85},
	}
}

// CommentNotifier is told about posted comments.
type CommentNotifier interface {
	PublishCommentPosted(ctx context.Context, itemID string, comment model.Comment) error
}

// Comments keeps one thread per item, newest first.
type Comments struct {
	mu       sync.Mutex
	threads  map[string][]model.Comment
	notifier CommentNotifier
}

// NewComments creates an empty comment store. notifier may be nil.
func NewComments(notifier CommentNotifier) *Comments {
	return &Comments{threads: make(map[string][]model.Comment), notifier: notifier}
}

// List returns the thread for item. The first access seeds it from the item, or
// with DefaultComments when the item has no comment list at all.
func (c *Comments) List(item model.ContentItem) []model.Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	thread := c.thread(item)
	out := make([]model.Comment, len(thread))
	copy(out, thread)
	return out
}

// Post prepends a comment to the item's thread.
func (c *Comments) Post(ctx context.Context, item model.ContentItem, text string) (model.Comment, error) {
	if strings.TrimSpace(text) == "" {
		return model.Comment{}, ErrEmptyText
	}

	comment := model.Comment{
		ID:        "c-" + ulid.Make().String(),
		Author:    CommentAuthor,
		Text:      text,
		Timestamp: "Just now",
		Likes:     0,
	}

	c.mu.Lock()
	thread := c.thread(item)
	c.threads[item.ID] = append([]model.Comment{comment}, thread...)
	c.mu.Unlock()

	if c.notifier != nil {
		if err := c.notifier.PublishCommentPosted(ctx, item.ID, comment); err != nil {
			slog.WarnContext(ctx, "comment event publish failed", "item_id", item.ID, "error", err)
		}
	}
	return comment, nil
}

// thread returns the item's thread, seeding it on first use. Callers hold mu.
func (c *Comments) thread(item model.ContentItem) []model.Comment {
	if t, ok := c.threads[item.ID]; ok {
		return t
	}
	var t []model.Comment
	if item.Comments != nil {
		t = append([]model.Comment{}, item.Comments...)
	} else {
		t = DefaultComments()
	}
	c.threads[item.ID] = t
	return t
}
