// Package app is the application-state object. It owns the catalog, navigation,
// filters and the orchestrators, and is mutated only through its named operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/cache"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/event"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/filter"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/media"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/navigator"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/search"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/watch"
)

var (
	// ErrNotFound is returned for unknown item ids.
	ErrNotFound = errors.New("item not found")
	// ErrDuplicateID is returned when publishing an id already in the catalog.
	ErrDuplicateID = errors.New("item id already exists")
	// ErrInvalidFilter is returned for unknown categories or moods.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Collaborator is the generative service used by every orchestrator.
type Collaborator interface {
	search.Ranker
	studio.Drafter
	watch.Chatter
	watch.Summarizer
}

// Deps wires a Controller.
type Deps struct {
	Collaborator  Collaborator
	Uploader      studio.Uploader  // Defaults to a simulated uploader
	Registry      *media.Registry  // Defaults to a new registry
	Cache         *cache.Tiered    // Optional summary cache
	Events        event.Publisher  // Defaults to event.Noop
	Metrics       *metrics.Metrics // Optional
	SearchTimeout time.Duration    // Zero disables the search deadline
	Studio        studio.Options
}

// Controller holds the application state.
type Controller struct {
	catalog  *catalog.Store
	nav      *navigator.Navigator
	search   *search.Orchestrator
	studio   *studio.Orchestrator
	session  *watch.Session
	comments *watch.Comments
	events   event.Publisher
	pending  sync.WaitGroup // In-flight catalog events

	mu     sync.RWMutex
	filter model.FilterState
}

// New creates a controller over seed.
func New(seed []model.ContentItem, deps Deps) *Controller {
	if deps.Uploader == nil {
		deps.Uploader = media.SimulatedUploader{}
	}
	if deps.Registry == nil {
		deps.Registry = media.NewRegistry()
	}
	if deps.Events == nil {
		deps.Events = event.Noop{}
	}

	c := &Controller{
		catalog:  catalog.NewStore(seed),
		nav:      navigator.New(),
		session:  watch.NewSession(deps.Collaborator, deps.Collaborator, deps.Cache),
		comments: watch.NewComments(deps.Events),
		events:   deps.Events,
		filter:   model.FilterState{Category: model.CategoryAll},
	}
	c.search = search.New(deps.Collaborator, c.catalog, c.nav, deps.SearchTimeout, deps.Metrics)
	c.studio = studio.New(deps.Collaborator, deps.Uploader, c, deps.Registry, deps.Metrics, deps.Studio)
	return c
}

// eventTimeout bounds a catalog event publish.
const eventTimeout = 10 * time.Second

// Publish validates item, prepends it to the catalog and returns to Home. The
// item.published event is emitted in the background.
func (c *Controller) Publish(ctx context.Context, item model.ContentItem) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if _, exists := c.catalog.Get(item.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
	}

	c.catalog.Publish(item)
	c.nav.Navigate(model.ViewHome)

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
		defer cancel()
		if err := c.events.PublishItemPublished(ctx, item); err != nil {
			slog.WarnContext(ctx, "item event publish failed", "item_id", item.ID, "error", err)
		}
	}()
	return nil
}

// Close resets the studio and waits for pending catalog events.
func (c *Controller) Close() {
	c.studio.Close()
	c.pending.Wait()
}

// ApplyRanking reorders the displayed list.
func (c *Controller) ApplyRanking(orderedIDs []string) {
	c.catalog.ApplyRanking(orderedIDs)
}

// SetView switches the active screen.
func (c *Controller) SetView(view model.View) {
	c.nav.Navigate(view)
}

// SetFilter replaces the category and mood selections.
func (c *Controller) SetFilter(state model.FilterState) error {
	state = state.Normalized()
	if !model.IsFilterCategory(state.Category) {
		return fmt.Errorf("%w: category %q", ErrInvalidFilter, state.Category)
	}
	if state.Mood != nil && !state.Mood.Valid() {
		return fmt.Errorf("%w: mood %q", ErrInvalidFilter, *state.Mood)
	}

	c.mu.Lock()
	c.filter = state
	c.mu.Unlock()
	return nil
}

// ResetFilters clears category, mood and the search ranking.
func (c *Controller) ResetFilters(ctx context.Context) {
	c.mu.Lock()
	c.filter = model.FilterState{Category: model.CategoryAll}
	c.mu.Unlock()
	c.search.Search(ctx, "")
}

// Filter returns the active selections.
func (c *Controller) Filter() model.FilterState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filter
}

// Search ranks the catalog for query.
func (c *Controller) Search(ctx context.Context, query string) search.Outcome {
	return c.search.Search(ctx, query)
}

// OpenItem selects id for playback and binds the watch session to it.
func (c *Controller) OpenItem(id string) (model.ContentItem, error) {
	item, ok := c.catalog.Get(id)
	if !ok {
		return model.ContentItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c.nav.Open(item)
	c.session.Open(item)
	return item, nil
}

// Feed renders the home feed: the displayed list narrowed by the active filters.
func (c *Controller) Feed() model.FeedResponse {
	state := c.Filter()
	items := filter.Apply(c.catalog.Displayed(), state)
	return model.FeedResponse{
		View:           c.nav.State().View,
		Filter:         state,
		Searching:      c.search.Searching(),
		Items:          items,
		ResetAvailable: len(items) == 0,
	}
}

// Player returns the item to play, if the watch screen has a valid selection.
func (c *Controller) Player() (model.ContentItem, bool) {
	return c.nav.Player(func(id string) bool {
		_, ok := c.catalog.Get(id)
		return ok
	})
}

// Navigation returns the navigator state.
func (c *Controller) Navigation() navigator.State {
	return c.nav.State()
}

// Studio returns the creation orchestrator.
func (c *Controller) Studio() *studio.Orchestrator {
	return c.studio
}

// Watch returns the watch session.
func (c *Controller) Watch() *watch.Session {
	return c.session
}

// Comments returns the comment threads.
func (c *Controller) Comments() *watch.Comments {
	return c.comments
}

// Catalog exposes read access to the catalog.
func (c *Controller) Catalog() *catalog.Store {
	return c.catalog
}
