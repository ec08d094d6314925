package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// ChatFallback is the assistant reply used when a chat turn cannot be answered.
const ChatFallback = "I'm having trouble connecting to my neural core. Try again in a moment."

// ErrMalformed is returned when a payload fails its schema.
var ErrMalformed = errors.New("malformed collaborator response")

// Options tunes the collaborator boundary.
type Options struct {
	RequestsPerSecond float64       // Sustained call rate; 0 disables limiting
	Burst             int           // Burst size for the limiter
	MaxTries          uint          // Attempts per call including the first
	RetryInterval     time.Duration // Initial backoff interval
	CallTimeout       time.Duration // Deadline for a single call, 0 for none
}

// DefaultOptions are used for zero-valued fields.
var DefaultOptions = Options{
	RequestsPerSecond: 2,
	Burst:             4,
	MaxTries:          3,
	RetryInterval:     500 * time.Millisecond,
	CallTimeout:       20 * time.Second,
}

// Budget is the longest a single collaborator call can take: every try running to
// its deadline plus the capped backoff between tries. Zero fields take defaults.
func (o Options) Budget() time.Duration {
	if o.MaxTries == 0 {
		o.MaxTries = DefaultOptions.MaxTries
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = DefaultOptions.RetryInterval
	}
	if o.CallTimeout == 0 {
		o.CallTimeout = DefaultOptions.CallTimeout
	}
	tries := time.Duration(o.MaxTries)
	return tries*o.CallTimeout + (tries-1)*maxRetryInterval(o.RetryInterval)
}

func maxRetryInterval(initial time.Duration) time.Duration {
	return 10 * initial
}

// Collaborator wraps a Generator with schema validation, retries, rate limiting and
// the documented fallbacks. Failures never escape Rank or Chat.
type Collaborator struct {
	gen       Generator
	validator *schema.Validator
	limiter   *rate.Limiter
	opts      Options
	metrics   *metrics.Metrics
}

// NewCollaborator builds the boundary around gen.
func NewCollaborator(gen Generator, validator *schema.Validator, m *metrics.Metrics, opts Options) *Collaborator {
	if opts.MaxTries == 0 {
		opts.MaxTries = DefaultOptions.MaxTries
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = DefaultOptions.RetryInterval
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultOptions.Burst
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	}

	return &Collaborator{
		gen:       gen,
		validator: validator,
		limiter:   limiter,
		opts:      opts,
		metrics:   m,
	}
}

// Rank orders candidate ids by relevance to query.
// On any failure it returns the candidates' original order.
func (c *Collaborator) Rank(ctx context.Context, query string, candidates []Candidate) []string {
	original := make([]string, len(candidates))
	for i, cand := range candidates {
		original[i] = cand.ID
	}

	raw, err := c.call(ctx, Request{Kind: KindRanking, Prompt: buildRankingPrompt(query, candidates)})
	if err == nil {
		err = c.validate(schema.KindRanking, raw)
	}
	if err != nil {
		slog.WarnContext(ctx, "ranking failed, keeping original order", "query", query, "error", err)
		return original
	}

	var ranked []string
	if err := json.Unmarshal(raw, &ranked); err != nil {
		slog.WarnContext(ctx, "ranking decode failed, keeping original order", "error", err)
		return original
	}
	return ranked
}

// Draft generates metadata for a new item from a free-text prompt.
// There is no fallback: a missing or malformed field fails the request.
func (c *Collaborator) Draft(ctx context.Context, prompt string) (model.Draft, error) {
	raw, err := c.call(ctx, Request{Kind: KindDraft, Prompt: buildDraftPrompt(prompt)})
	if err != nil {
		return model.Draft{}, err
	}
	if err := c.validate(schema.KindDraft, raw); err != nil {
		return model.Draft{}, err
	}

	var draft model.Draft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return model.Draft{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return draft, nil
}

// Summarize produces the watch-page summary for an item.
func (c *Collaborator) Summarize(ctx context.Context, title, description string) (*model.Summary, error) {
	raw, err := c.call(ctx, Request{Kind: KindSummary, Prompt: buildSummaryPrompt(title, description)})
	if err != nil {
		return nil, err
	}
	if err := c.validate(schema.KindSummary, raw); err != nil {
		return nil, err
	}

	var summary model.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &summary, nil
}

// Chat answers message in the context of item, given the prior conversation.
// On failure it returns ChatFallback.
func (c *Collaborator) Chat(ctx context.Context, item model.ContentItem, history []model.ChatMessage, message string) string {
	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{FromUser: msg.Role == model.RoleUser, Text: msg.Text})
	}

	raw, err := c.call(ctx, Request{
		Kind:    KindChat,
		System:  buildChatSystem(item.Title, item.Description),
		History: turns,
		Prompt:  message,
	})
	if err != nil {
		slog.WarnContext(ctx, "chat turn failed, using fallback reply", "item_id", item.ID, "error", err)
		return ChatFallback
	}
	return string(raw)
}

func (c *Collaborator) validate(kind schema.Kind, raw []byte) error {
	if err := c.validator.Validate(kind, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// call runs one generation with rate limiting, retries on transient errors,
// a per-call deadline, a span and metrics.
func (c *Collaborator) call(ctx context.Context, req Request) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "collaborator."+string(req.Kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("kind", string(req.Kind)),
		attribute.Int("history_len", len(req.History)),
	)

	start := time.Now()
	text, err := c.generate(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
	}
	if c.metrics != nil {
		c.metrics.CollaboratorCallTotal.WithLabelValues(string(req.Kind), status).Inc()
		c.metrics.CollaboratorCallDuration.WithLabelValues(string(req.Kind), status).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}

	if req.Kind.JSON() {
		text = stripFences(text)
	}
	return []byte(text), nil
}

func (c *Collaborator) generate(ctx context.Context, req Request) (string, error) {
	operation := func() (string, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", backoff.Permanent(err)
			}
		}

		callCtx := ctx
		if c.opts.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.opts.CallTimeout)
			defer cancel()
		}

		text, err := c.gen.Generate(callCtx, req)
		if err != nil {
			var transient *TransientError
			if errors.As(err, &transient) {
				return "", err
			}
			return "", backoff.Permanent(err)
		}
		return text, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryInterval
	bo.MaxInterval = maxRetryInterval(c.opts.RetryInterval)

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(c.opts.MaxTries))
}
