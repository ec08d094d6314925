// Package search reorders the catalog by a collaborator-produced relevance ranking.
package search

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/ai"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// Ranker orders candidate ids for a query. It never fails; on error it returns
// the original order.
type Ranker interface {
	Rank(ctx context.Context, query string, candidates []ai.Candidate) []string
}

// Catalog is the slice of the catalog store the orchestrator writes to.
type Catalog interface {
	Master() []model.ContentItem
	ApplyRanking(orderedIDs []string)
	Reset()
}

// Navigator switches the active screen.
type Navigator interface {
	Navigate(view model.View)
}

// Outcome describes what a Search call did to the displayed list.
type Outcome string

const (
	OutcomeReset   Outcome = "reset"   // Blank query restored master order
	OutcomeApplied Outcome = "applied" // Ranking applied
	OutcomeStale   Outcome = "stale"   // A newer search superseded this one
)

// Orchestrator runs searches. Overlapping searches are allowed; only the result
// of the most recent request is applied.
type Orchestrator struct {
	ranker  Ranker
	catalog Catalog
	nav     Navigator
	timeout time.Duration
	metrics *metrics.Metrics

	mu         sync.Mutex
	generation uint64 // Id of the latest request
	searching  bool   // Latest request is awaiting its ranking
}

// New creates an orchestrator. A zero timeout disables the per-search deadline.
func New(ranker Ranker, catalog Catalog, nav Navigator, timeout time.Duration, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		ranker:  ranker,
		catalog: catalog,
		nav:     nav,
		timeout: timeout,
		metrics: m,
	}
}

// Searching reports whether the latest search is still waiting for its ranking.
func (o *Orchestrator) Searching() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.searching
}

// Search ranks the catalog for query. A blank query restores master order without
// contacting the ranker.
func (o *Orchestrator) Search(ctx context.Context, query string) Outcome {
	ctx, span := telemetry.Tracer().Start(ctx, "search.Search")
	defer span.End()

	if strings.TrimSpace(query) == "" {
		o.mu.Lock()
		o.generation++
		o.searching = false
		o.catalog.Reset()
		o.mu.Unlock()

		span.SetAttributes(attribute.String("outcome", string(OutcomeReset)))
		o.count(OutcomeReset)
		return OutcomeReset
	}

	o.mu.Lock()
	o.generation++
	gen := o.generation
	o.searching = true
	o.mu.Unlock()

	o.nav.Navigate(model.ViewHome)

	master := o.catalog.Master()
	candidates := make([]ai.Candidate, len(master))
	for i, item := range master {
		candidates[i] = ai.Candidate{ID: item.ID, Title: item.Title}
	}

	rankCtx := ctx
	if o.timeout > 0 {
		var cancel context.CancelFunc
		rankCtx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	ranked := o.ranker.Rank(rankCtx, query, candidates)

	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		slog.DebugContext(ctx, "dropping stale search result", "query", query, "generation", gen, "latest", o.generation)
		span.SetAttributes(attribute.String("outcome", string(OutcomeStale)))
		o.count(OutcomeStale)
		return OutcomeStale
	}
	o.catalog.ApplyRanking(ranked)
	o.searching = false

	span.SetAttributes(
		attribute.String("outcome", string(OutcomeApplied)),
		attribute.Int("ranked", len(ranked)),
	)
	o.count(OutcomeApplied)
	return OutcomeApplied
}

func (o *Orchestrator) count(outcome Outcome) {
	if o.metrics != nil {
		o.metrics.SearchTotal.WithLabelValues(string(outcome)).Inc()
	}
}
