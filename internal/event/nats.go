// internal/event/nats.go
// Package event publishes catalog events to NATS JetStream.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// Event subjects on the NOVA_CATALOG stream.
const (
	StreamName           = "NOVA_CATALOG"
	SubjectItemPublished = "nova.catalog.item.published"
	SubjectCommentPosted = "nova.catalog.comment.posted"

	dedupWindow = 2 * time.Minute
	dedupKeep   = 5 * time.Minute
)

// Publisher emits catalog events.
type Publisher interface {
	PublishItemPublished(ctx context.Context, item model.ContentItem) error
	PublishCommentPosted(ctx context.Context, itemID string, comment model.Comment) error
	Close() error
}

// Noop is used when NATS is not configured.
type Noop struct{}

func (Noop) PublishItemPublished(context.Context, model.ContentItem) error { return nil }
func (Noop) PublishCommentPosted(context.Context, string, model.Comment) error { return nil }
func (Noop) Close() error { return nil }

// CommentPosted is the payload of a comment event.
type CommentPosted struct {
	ItemID  string        `json:"itemId"`
	Comment model.Comment `json:"comment"`
}

// EventEnvelope wraps every published event.
type EventEnvelope struct {
	Type          string      `json:"type"`
	Version       string      `json:"version"`
	OccurredAt    time.Time   `json:"occurredAt"`
	CorrelationID string      `json:"correlationId"`
	Payload       interface{} `json:"payload"`
}

// streamPublisher is the part of a JetStream context used for publishing.
type streamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type natsPub struct {
	nc      *nats.Conn
	js      streamPublisher
	metrics *metrics.Metrics

	mu    sync.Mutex
	dedup map[string]time.Time // Event key to last publish time
}

// NewPublisher connects to url and ensures the catalog stream exists. An empty url,
// or any connection failure, yields a Noop publisher.
func NewPublisher(url string, m *metrics.Metrics) Publisher {
	if url == "" {
		return Noop{}
	}

	nc, err := nats.Connect(url)
	if err != nil {
		slog.Warn("NATS connect failed, using noop publisher", "error", err)
		return Noop{}
	}

	js, err := nc.JetStream()
	if err != nil {
		slog.Warn("NATS JetStream context creation failed, using noop publisher", "error", err)
		nc.Close()
		return Noop{}
	}

	if err := initStream(js); err != nil {
		slog.Warn("NATS stream initialization failed, using noop publisher", "error", err)
		nc.Close()
		return Noop{}
	}

	return newNatsPub(nc, js, m)
}

func newNatsPub(nc *nats.Conn, js streamPublisher, m *metrics.Metrics) *natsPub {
	return &natsPub{nc: nc, js: js, metrics: m, dedup: make(map[string]time.Time)}
}

func initStream(js nats.JetStreamContext) error {
	_, err := js.AddStream(&nats.StreamConfig{
		Name:       StreamName,
		Subjects:   []string{"nova.catalog.>"},
		Retention:  nats.LimitsPolicy,
		MaxAge:     24 * time.Hour,
		Discard:    nats.DiscardOld,
		Storage:    nats.FileStorage,
		Duplicates: dedupWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to create %s stream: %w", StreamName, err)
	}
	return nil
}

func (p *natsPub) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// PublishItemPublished emits an item.published event.
func (p *natsPub) PublishItemPublished(ctx context.Context, item model.ContentItem) error {
	return p.publish(ctx, SubjectItemPublished, "item:"+item.ID, item)
}

// PublishCommentPosted emits a comment.posted event.
func (p *natsPub) PublishCommentPosted(ctx context.Context, itemID string, comment model.Comment) error {
	return p.publish(ctx, SubjectCommentPosted, "comment:"+comment.ID, CommentPosted{ItemID: itemID, Comment: comment})
}

func (p *natsPub) publish(ctx context.Context, subject, key string, payload interface{}) error {
	if p.shouldDedup(key) {
		p.count(subject, "deduplicated")
		return nil
	}

	b, err := json.Marshal(EventEnvelope{
		Type:          subject,
		Version:       "1.0.0",
		OccurredAt:    time.Now().UTC(),
		CorrelationID: correlationID(ctx),
		Payload:       payload,
	})
	if err != nil {
		return err
	}

	if _, err := p.js.Publish(subject, b, nats.MsgId(key), nats.Context(ctx)); err != nil {
		p.count(subject, "error")
		return err
	}

	p.updateDedup(key)
	p.count(subject, "ok")
	return nil
}

// correlationID returns the id of the request that caused the event, or a fresh one
// for events raised outside a request.
func correlationID(ctx context.Context) string {
	if id := telemetry.CorrelationID(ctx); id != "" {
		return id
	}
	return uuid.New().String()
}

// shouldDedup reports whether key was published within the dedup window.
func (p *natsPub) shouldDedup(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.dedup[key]
	return ok && time.Since(last) < dedupWindow
}

func (p *natsPub) updateDedup(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-dedupKeep)
	for k, t := range p.dedup {
		if t.Before(cutoff) {
			delete(p.dedup, k)
		}
	}
	p.dedup[key] = time.Now()
}

func (p *natsPub) count(subject, status string) {
	if p.metrics != nil {
		p.metrics.EventPublishTotal.WithLabelValues(subject, status).Inc()
	}
}
