// Package ai is the boundary to the generative text collaborator used for search
// ranking, metadata drafts, watch-page chat and summaries.
package ai

import (
	"context"
	"errors"
)

// Kind identifies the request shape sent to the collaborator.
type Kind string

const (
	KindRanking Kind = "ranking"
	KindDraft   Kind = "draft"
	KindSummary Kind = "summary"
	KindChat    Kind = "chat"
)

// JSON reports whether the kind expects a JSON payload rather than free text.
func (k Kind) JSON() bool {
	return k != KindChat
}

// Turn is one prior message in a conversation.
type Turn struct {
	FromUser bool
	Text     string
}

// Request is a single text-generation call.
type Request struct {
	Kind    Kind
	System  string // Optional system preamble
	History []Turn // Prior turns, oldest first
	Prompt  string // New user content
}

// Generator performs one text-generation call and returns the raw model text.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ErrUnavailable is returned when no collaborator is configured or it refused the call.
var ErrUnavailable = errors.New("generative collaborator unavailable")

// TransientError marks a failure worth retrying (rate limiting, overload).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Offline is the Generator used when no API key is configured.
// Every call fails with ErrUnavailable so callers take their fallbacks.
type Offline struct{}

// Generate implements Generator.
func (Offline) Generate(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
