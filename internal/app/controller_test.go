package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/ai"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/event"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
)

// fixedGenerator answers every request kind with a canned payload.
type fixedGenerator struct{}

func (fixedGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	switch req.Kind {
	case ai.KindRanking:
		return `["v4","v2"]`, nil
	case ai.KindDraft:
		return `{"title":"T","description":"D","mood":"Calm","duration":"3:00"}`, nil
	case ai.KindSummary:
		return `{"summary":"s","keyTakeaways":["a"],"vibe":"v"}`, nil
	default:
		return "hello from Nova", nil
	}
}

func newTestController(t *testing.T, gen ai.Generator) *Controller {
	t.Helper()
	collab := ai.NewCollaborator(gen, schema.MustNewValidator(), nil, ai.Options{MaxTries: 1, RetryInterval: time.Millisecond})
	return New(catalog.MockItems(), Deps{
		Collaborator: collab,
		Studio:       studio.Options{CompletionDelay: time.Millisecond},
	})
}

func ids(items []model.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func moodPtr(m model.Mood) *model.Mood { return &m }

func TestFeedWithoutFiltersIsDisplayedList(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	feed := c.Feed()
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, ids(feed.Items))
	assert.Equal(t, model.ViewHome, feed.View)
	assert.False(t, feed.ResetAvailable)
}

func TestFilterScenario(t *testing.T) {
	c := newTestController(t, fixedGenerator{})

	require.NoError(t, c.SetFilter(model.FilterState{Category: model.CategoryScience}))
	assert.Equal(t, []string{"v1"}, ids(c.Feed().Items))

	require.NoError(t, c.SetFilter(model.FilterState{Category: model.CategoryScience, Mood: moodPtr(model.MoodCalm)}))
	feed := c.Feed()
	assert.Empty(t, feed.Items)
	assert.True(t, feed.ResetAvailable)

	c.ResetFilters(context.Background())
	feed = c.Feed()
	assert.Len(t, feed.Items, 5)
	assert.Equal(t, model.CategoryAll, feed.Filter.Category)
	assert.Nil(t, feed.Filter.Mood)
}

func TestSetFilterRejectsUnknownValues(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	assert.ErrorIs(t, c.SetFilter(model.FilterState{Category: "Cooking"}), ErrInvalidFilter)
	assert.ErrorIs(t, c.SetFilter(model.FilterState{Mood: moodPtr("Sleepy")}), ErrInvalidFilter)
}

func TestPublishPrependsAndGoesHome(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	_, err := c.OpenItem("v3")
	require.NoError(t, err)

	item := model.ContentItem{ID: "v-new", Title: "New", Mood: model.MoodFunny, Category: model.CategoryGaming}
	require.NoError(t, c.Publish(context.Background(), item))

	assert.Equal(t, "v-new", c.Feed().Items[0].ID)
	assert.Equal(t, model.ViewHome, c.Navigation().View)
	assert.ErrorIs(t, c.Publish(context.Background(), item), ErrDuplicateID)
	assert.ErrorIs(t, c.Publish(context.Background(), model.ContentItem{ID: "bad", Mood: "Sleepy"}), model.ErrInvalidItem)
}

func TestSearchReordersFeedAndResetRestores(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	c.SetView(model.ViewDiscovery)

	assert.Equal(t, "applied", string(c.Search(context.Background(), "sports")))
	assert.Equal(t, []string{"v4", "v2", "v1", "v3", "v5"}, ids(c.Feed().Items))
	assert.Equal(t, model.ViewHome, c.Navigation().View)

	c.Search(context.Background(), "  ")
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, ids(c.Feed().Items))
}

func TestPlayerGuard(t *testing.T) {
	c := newTestController(t, fixedGenerator{})

	_, ok := c.Player()
	assert.False(t, ok)

	_, err := c.OpenItem("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	item, err := c.OpenItem("v2")
	require.NoError(t, err)
	got, ok := c.Player()
	require.True(t, ok)
	assert.Equal(t, item, got)

	c.SetView(model.ViewHome)
	_, ok = c.Player()
	assert.False(t, ok)
}

func TestStudioFinalizePublishesThroughController(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	st := c.Studio()

	require.NoError(t, st.SetPrompt("ocean"))
	require.NoError(t, st.GenerateDraft(context.Background()))
	require.NoError(t, st.ConfirmDraft())
	item, err := st.Finalize(context.Background())
	require.NoError(t, err)

	feed := c.Feed()
	assert.Equal(t, item.ID, feed.Items[0].ID)
	assert.Equal(t, model.CategoryInnovation, feed.Items[0].Category)
	assert.Equal(t, studio.AIAuthor, feed.Items[0].Author)
}

// finalizeAIDraft walks the studio through the AI track and finalizes.
func finalizeAIDraft(t *testing.T, st *studio.Orchestrator) (model.ContentItem, error) {
	t.Helper()
	require.NoError(t, st.SetPrompt("ocean"))
	require.NoError(t, st.GenerateDraft(context.Background()))
	require.NoError(t, st.ConfirmDraft())
	return st.Finalize(context.Background())
}

func TestFinalizeWithCollidingIDStaysInSuccess(t *testing.T) {
	clock := time.UnixMilli(1700000000000)
	collab := ai.NewCollaborator(fixedGenerator{}, schema.MustNewValidator(), nil, ai.Options{MaxTries: 1, RetryInterval: time.Millisecond})
	c := New(catalog.MockItems(), Deps{
		Collaborator: collab,
		Studio: studio.Options{
			CompletionDelay: time.Millisecond,
			Now:             func() time.Time { return clock },
		},
	})
	st := c.Studio()

	first, err := finalizeAIDraft(t, st)
	require.NoError(t, err)

	_, err = finalizeAIDraft(t, st)
	assert.ErrorIs(t, err, ErrDuplicateID)
	snap := st.Snapshot()
	assert.Equal(t, studio.StageSuccess, snap.Stage)
	require.NotNil(t, snap.Draft)

	clock = clock.Add(time.Millisecond)
	second, err := st.Finalize(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{second.ID, first.ID}, ids(c.Feed().Items)[:2])
	assert.Equal(t, studio.StagePrompt, st.Snapshot().Stage)
}

// blockingEvents holds item events until released.
type blockingEvents struct {
	event.Noop
	release chan struct{}

	mu        sync.Mutex
	published []string
}

func (b *blockingEvents) PublishItemPublished(_ context.Context, item model.ContentItem) error {
	<-b.release
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, item.ID)
	return nil
}

func TestSlowEventsDoNotBlockStudio(t *testing.T) {
	events := &blockingEvents{release: make(chan struct{})}
	collab := ai.NewCollaborator(fixedGenerator{}, schema.MustNewValidator(), nil, ai.Options{MaxTries: 1, RetryInterval: time.Millisecond})
	c := New(catalog.MockItems(), Deps{
		Collaborator: collab,
		Events:       events,
		Studio:       studio.Options{CompletionDelay: time.Millisecond},
	})

	st := c.Studio()
	require.NoError(t, st.SetPrompt("ocean"))
	require.NoError(t, st.GenerateDraft(context.Background()))
	require.NoError(t, st.ConfirmDraft())

	done := make(chan model.ContentItem, 1)
	go func() {
		item, err := st.Finalize(context.Background())
		assert.NoError(t, err)
		done <- item
	}()

	var item model.ContentItem
	select {
	case item = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("finalize waited on the event publisher")
	}
	assert.Equal(t, studio.StagePrompt, st.Snapshot().Stage)
	assert.Equal(t, item.ID, c.Feed().Items[0].ID)

	close(events.release)
	c.Close()
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, []string{item.ID}, events.published)
}

func TestWatchChatUsesOpenedItem(t *testing.T) {
	c := newTestController(t, fixedGenerator{})
	_, err := c.OpenItem("v1")
	require.NoError(t, err)

	_, reply, err := c.Watch().Send(context.Background(), "what is this?")
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "hello from Nova", reply.Text)
}

func TestOfflineCollaboratorFallbacks(t *testing.T) {
	c := newTestController(t, ai.Offline{})

	c.Search(context.Background(), "anything")
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, ids(c.Feed().Items))

	_, err := c.OpenItem("v1")
	require.NoError(t, err)
	_, reply, err := c.Watch().Send(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, ai.ChatFallback, reply.Text)
}
