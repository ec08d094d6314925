package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/schema"
)

// scriptedGenerator returns queued responses in order and records requests.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []scripted
	requests  []Request
}

type scripted struct {
	text string
	err  error
}

func (g *scriptedGenerator) Generate(_ context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.responses) == 0 {
		return "", ErrUnavailable
	}
	next := g.responses[0]
	g.responses = g.responses[1:]
	return next.text, next.err
}

func newTestCollaborator(gen Generator) *Collaborator {
	return NewCollaborator(gen, schema.MustNewValidator(), nil, Options{
		MaxTries:      3,
		RetryInterval: time.Millisecond,
	})
}

var candidates = []Candidate{{ID: "v1", Title: "a"}, {ID: "v2", Title: "b"}, {ID: "v3", Title: "c"}}

func TestRankReturnsModelOrder(t *testing.T) {
	gen := &scriptedGenerator{responses: []scripted{{text: "```json\n[\"v3\",\"v1\"]\n```"}}}
	c := newTestCollaborator(gen)

	got := c.Rank(context.Background(), "cyberpunk", candidates)
	assert.Equal(t, []string{"v3", "v1"}, got)
	require.Len(t, gen.requests, 1)
	assert.Equal(t, KindRanking, gen.requests[0].Kind)
	assert.Contains(t, gen.requests[0].Prompt, `"cyberpunk"`)
	assert.Contains(t, gen.requests[0].Prompt, `{"id":"v2","title":"b"}`)
}

func TestRankFallsBackToOriginalOrder(t *testing.T) {
	tests := []struct {
		name string
		resp scripted
	}{
		{"unavailable", scripted{err: ErrUnavailable}},
		{"malformed", scripted{text: `{"ids":["v2"]}`}},
		{"not json", scripted{text: "v2, v1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCollaborator(&scriptedGenerator{responses: []scripted{tt.resp}})
			got := c.Rank(context.Background(), "q", candidates)
			assert.Equal(t, []string{"v1", "v2", "v3"}, got)
		})
	}
}

func TestDraftValidatesPayload(t *testing.T) {
	gen := &scriptedGenerator{responses: []scripted{
		{text: `{"title":"T","description":"D","mood":"Calm","duration":"3:00"}`},
		{text: `{"title":"T","description":"D","mood":"Calm"}`},
	}}
	c := newTestCollaborator(gen)

	draft, err := c.Draft(context.Background(), "space")
	require.NoError(t, err)
	assert.Equal(t, model.Draft{Title: "T", Description: "D", Mood: model.MoodCalm, Duration: "3:00"}, draft)

	_, err = c.Draft(context.Background(), "space")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDraftHasNoFallback(t *testing.T) {
	c := newTestCollaborator(Offline{})

	_, err := c.Draft(context.Background(), "space")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestTransientErrorsAreRetried(t *testing.T) {
	gen := &scriptedGenerator{responses: []scripted{
		{err: &TransientError{Err: errors.New("429")}},
		{err: &TransientError{Err: errors.New("503")}},
		{text: `{"summary":"s","keyTakeaways":["a"],"vibe":"v"}`},
	}}
	c := newTestCollaborator(gen)

	summary, err := c.Summarize(context.Background(), "t", "d")
	require.NoError(t, err)
	assert.Equal(t, "s", summary.Summary)
	assert.Len(t, gen.requests, 3)
}

func TestPermanentErrorsAreNotRetried(t *testing.T) {
	gen := &scriptedGenerator{responses: []scripted{{err: errors.New("bad request")}, {text: "unused"}}}
	c := newTestCollaborator(gen)

	_, err := c.Summarize(context.Background(), "t", "d")
	assert.Error(t, err)
	assert.Len(t, gen.requests, 1)
}

func TestChatSendsPersonaAndHistory(t *testing.T) {
	gen := &scriptedGenerator{responses: []scripted{{text: "Warp drives are speculative."}}}
	c := newTestCollaborator(gen)
	item := model.ContentItem{ID: "v2", Title: "Interstellar", Description: "Warp drives"}
	history := []model.ChatMessage{
		{Role: model.RoleUser, Text: "hi"},
		{Role: model.RoleAssistant, Text: "hello"},
	}

	reply := c.Chat(context.Background(), item, history, "is it real?")
	assert.Equal(t, "Warp drives are speculative.", reply)

	req := gen.requests[0]
	assert.Equal(t, KindChat, req.Kind)
	assert.True(t, strings.Contains(req.System, "Nova"))
	assert.Contains(t, req.System, "Interstellar: Warp drives")
	assert.Equal(t, []Turn{{FromUser: true, Text: "hi"}, {FromUser: false, Text: "hello"}}, req.History)
	assert.Equal(t, "is it real?", req.Prompt)
}

func TestChatFallback(t *testing.T) {
	c := newTestCollaborator(Offline{})
	reply := c.Chat(context.Background(), model.ContentItem{ID: "v1"}, nil, "hello")
	assert.Equal(t, ChatFallback, reply)
}

func TestBudgetCoversEveryTry(t *testing.T) {
	opts := Options{MaxTries: 3, RetryInterval: 500 * time.Millisecond, CallTimeout: 20 * time.Second}
	assert.Equal(t, 70*time.Second, opts.Budget())
	assert.Equal(t, DefaultOptions.Budget(), Options{}.Budget())
	assert.Greater(t, DefaultOptions.Budget(), time.Duration(DefaultOptions.MaxTries)*DefaultOptions.CallTimeout)
}
