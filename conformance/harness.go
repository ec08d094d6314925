// Package conformance provides a test harness for verifying NovaTube behavior over HTTP.
package conformance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/ai"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/app"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/media"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/schema"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/server"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
)

// Harness runs the service behind an httptest server. Every scenario starts from a
// fresh application over the mock catalog.
type Harness struct {
	server *httptest.Server
	cfg    Config
	gen    *scriptedGenerator

	mu      sync.RWMutex
	handler http.Handler
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// RankingResponse is the collaborator's answer to every search
	RankingResponse string

	// DraftResponse is the collaborator's answer to every draft request
	DraftResponse string

	// UploadInterval and UploadStep drive the simulated uploader
	UploadInterval time.Duration
	UploadStep     float64

	// Timeout bounds polling for asynchronous transitions
	Timeout time.Duration
}

// DefaultConfig returns the configuration used by TestConformance.
func DefaultConfig() Config {
	return Config{
		RankingResponse: `["v4","v2"]`,
		DraftResponse:   `{"title":"T","description":"D","mood":"Calm","duration":"3:00"}`,
		UploadInterval:  5 * time.Millisecond,
		UploadStep:      20,
		Timeout:         5 * time.Second,
	}
}

// NewHarness creates a new conformance test harness.
func NewHarness(cfg Config) (*Harness, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.UploadStep <= 0 {
		return nil, fmt.Errorf("upload step must be positive, got %v", cfg.UploadStep)
	}
	h := &Harness{cfg: cfg}
	if err := h.Reset(); err != nil {
		return nil, err
	}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.mu.RLock()
		handler := h.handler
		h.mu.RUnlock()
		handler.ServeHTTP(w, r)
	}))
	return h, nil
}

// Reset replaces the application with a fresh one and zeroes the call counters.
func (h *Harness) Reset() error {
	validator, err := schema.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to initialize schema validator: %w", err)
	}
	gen := newScriptedGenerator(h.cfg.RankingResponse, h.cfg.DraftResponse)
	collab := ai.NewCollaborator(gen, validator, nil, ai.Options{MaxTries: 1, RetryInterval: time.Millisecond})

	step := h.cfg.UploadStep
	controller := app.New(catalog.MockItems(), app.Deps{
		Collaborator: collab,
		Uploader: media.SimulatedUploader{
			Interval: h.cfg.UploadInterval,
			Step:     func() float64 { return step },
		},
		Studio: studio.Options{CompletionDelay: 10 * time.Millisecond},
	})
	mux := server.NewMux(controller, server.Options{
		MaxMediaSize:     10 * 1024 * 1024,
		AllowedMimeTypes: []string{"image/jpeg", "image/png", "video/mp4"},
	})

	h.mu.Lock()
	h.handler = mux
	h.gen = gen
	h.mu.Unlock()
	return nil
}

// URL returns the base URL of the test server.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the test server and cleans up resources.
func (h *Harness) Close() {
	h.server.Close()
}

// RankingCalls reports how many ranking requests reached the collaborator since
// the last Reset.
func (h *Harness) RankingCalls() int32 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.gen.calls[ai.KindRanking].Load()
}

// scriptedGenerator answers with fixed payloads and counts calls per kind.
type scriptedGenerator struct {
	ranking string
	draft   string
	calls   map[ai.Kind]*atomic.Int32
}

func newScriptedGenerator(ranking, draft string) *scriptedGenerator {
	return &scriptedGenerator{
		ranking: ranking,
		draft:   draft,
		calls: map[ai.Kind]*atomic.Int32{
			ai.KindRanking: {},
			ai.KindDraft:   {},
			ai.KindSummary: {},
			ai.KindChat:    {},
		},
	}
}

func (g *scriptedGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	if c, ok := g.calls[req.Kind]; ok {
		c.Add(1)
	}
	switch req.Kind {
	case ai.KindRanking:
		return g.ranking, nil
	case ai.KindDraft:
		return g.draft, nil
	case ai.KindSummary:
		return `{"summary":"A short summary.","keyTakeaways":["one"],"vibe":"Chill"}`, nil
	default:
		return "Here is what I know.", nil
	}
}

// RunConformanceTests runs every scenario against a fresh application.
func (h *Harness) RunConformanceTests(t *testing.T) {
	scenarios := []struct {
		name string
		run  func(t *testing.T)
	}{
		{"HealthEndpoints", h.testHealthEndpoints},
		{"UnfilteredFeedIsDisplayedList", h.testUnfilteredFeed},
		{"RankingIsStable", h.testRankingStability},
		{"BlankSearchSkipsCollaborator", h.testBlankSearch},
		{"FilterScenario", h.testFilterScenario},
		{"ManualUploadGating", h.testManualUpload},
		{"PublishedItemLeadsFeed", h.testPublishedItemLeadsFeed},
		{"AIDraftScenario", h.testAIDraft},
	}
	for _, sc := range scenarios {
		if err := h.Reset(); err != nil {
			t.Fatalf("failed to reset harness: %v", err)
		}
		t.Run(sc.name, sc.run)
	}
}

// testHealthEndpoints tests the health check endpoints.
func (h *Harness) testHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(h.URL() + path)
		if err != nil {
			t.Fatalf("failed to GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200 for %s, got %d", path, resp.StatusCode)
		}
	}
}

// testUnfilteredFeed checks that category All with no mood returns the displayed list.
func (h *Harness) testUnfilteredFeed(t *testing.T) {
	feed := h.feed(t, "GET", "/v1/feed", "")
	expectIDs(t, feed, "v1", "v2", "v3", "v4", "v5")

	feed = h.feed(t, "POST", "/v1/filter", `{"category":"All"}`)
	expectIDs(t, feed, "v1", "v2", "v3", "v4", "v5")
}

// testRankingStability checks ranked ids lead in rank order and the rest keep master order.
func (h *Harness) testRankingStability(t *testing.T) {
	feed := h.feed(t, "POST", "/v1/search", `{"query":"neon nights"}`)
	expectIDs(t, feed, "v4", "v2", "v1", "v3", "v5")
	if got := h.RankingCalls(); got != 1 {
		t.Errorf("expected 1 ranking call, got %d", got)
	}
}

// testBlankSearch checks that a whitespace query resets without calling the collaborator.
func (h *Harness) testBlankSearch(t *testing.T) {
	for _, q := range []string{`""`, `"   "`, `"\t"`} {
		feed := h.feed(t, "POST", "/v1/search", `{"query":`+q+`}`)
		expectIDs(t, feed, "v1", "v2", "v3", "v4", "v5")
	}
	if got := h.RankingCalls(); got != 0 {
		t.Errorf("blank search must not reach the collaborator, got %d calls", got)
	}
}

// testFilterScenario selects Science, then Science + Calm, then resets.
func (h *Harness) testFilterScenario(t *testing.T) {
	feed := h.feed(t, "POST", "/v1/filter", `{"category":"Science"}`)
	expectIDs(t, feed, "v1")

	feed = h.feed(t, "POST", "/v1/filter", `{"category":"Science","mood":"Calm"}`)
	expectIDs(t, feed)
	if !feed.ResetAvailable {
		t.Error("expected the reset affordance on an empty result")
	}

	feed = h.feed(t, "POST", "/v1/filter/reset", "")
	expectIDs(t, feed, "v1", "v2", "v3", "v4", "v5")
}

// testManualUpload checks upload gating, monotonic progress and a single success.
func (h *Harness) testManualUpload(t *testing.T) {
	h.mustCall(t, "POST", "/v1/studio/mode", `{"mode":"manual"}`, http.StatusOK, nil)

	// Neither title nor video
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusConflict, nil)

	// Title only
	h.mustCall(t, "POST", "/v1/studio/manual", `{"title":"Backyard Rocket","description":"Launch day"}`, http.StatusOK, nil)
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusConflict, nil)

	// Video only
	h.mustCall(t, "POST", "/v1/studio/manual", `{"title":"   "}`, http.StatusOK, nil)
	h.attach(t, "video", "launch.mp4", "video/mp4")
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusConflict, nil)

	h.mustCall(t, "POST", "/v1/studio/manual", `{"title":"Backyard Rocket","description":"Launch day"}`, http.StatusOK, nil)
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusAccepted, nil)

	snap := h.awaitSuccess(t)
	if snap.Progress < 100 {
		t.Errorf("expected progress to reach 100, got %v", snap.Progress)
	}

	// Success is terminal until finalize; a second upload is rejected.
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusConflict, nil)
}

// testPublishedItemLeadsFeed publishes through the manual track and checks the feed.
func (h *Harness) testPublishedItemLeadsFeed(t *testing.T) {
	h.mustCall(t, "POST", "/v1/studio/mode", `{"mode":"manual"}`, http.StatusOK, nil)
	h.mustCall(t, "POST", "/v1/studio/manual", `{"title":"Backyard Rocket","category":"Science"}`, http.StatusOK, nil)
	h.attach(t, "video", "launch.mp4", "video/mp4")
	h.mustCall(t, "POST", "/v1/studio/upload", "", http.StatusAccepted, nil)
	h.awaitSuccess(t)

	var item itemView
	h.mustCall(t, "POST", "/v1/studio/finalize", "", http.StatusCreated, &item)

	feed := h.feed(t, "GET", "/v1/feed", "")
	if len(feed.Items) != 6 || feed.Items[0].ID != item.ID {
		t.Fatalf("expected %s to lead a feed of 6, got %v", item.ID, ids(feed))
	}
	if item.Author != studio.ManualAuthor || item.Category != "Science" {
		t.Errorf("unexpected manual item: %+v", item)
	}
}

// testAIDraft runs the AI track from prompt to a published item.
func (h *Harness) testAIDraft(t *testing.T) {
	h.mustCall(t, "POST", "/v1/studio/prompt", `{"prompt":"a calm lo-fi study session"}`, http.StatusOK, nil)

	var snap snapshotView
	h.mustCall(t, "POST", "/v1/studio/draft", "", http.StatusOK, &snap)
	if snap.Stage != string(studio.StagePreview) || snap.Draft == nil {
		t.Fatalf("expected a draft preview, got %+v", snap)
	}
	if snap.Draft.Title != "T" || snap.Draft.Description != "D" {
		t.Errorf("preview must show the draft as generated, got %+v", snap.Draft)
	}

	h.mustCall(t, "POST", "/v1/studio/draft/confirm", "", http.StatusOK, &snap)
	if snap.Stage != string(studio.StageSuccess) {
		t.Fatalf("expected success after confirm, got %s", snap.Stage)
	}

	var item itemView
	h.mustCall(t, "POST", "/v1/studio/finalize", "", http.StatusCreated, &item)
	if item.Category != "Innovation" {
		t.Errorf("expected category Innovation, got %s", item.Category)
	}
	if item.Author != "You (AI Assisted)" {
		t.Errorf("expected AI author, got %s", item.Author)
	}
	if item.Title != "T" || item.Mood != "Calm" || item.Duration != "3:00" {
		t.Errorf("unexpected AI item: %+v", item)
	}
}

type itemView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Category string `json:"category"`
	Mood     string `json:"mood"`
	Duration string `json:"duration"`
}

type feedView struct {
	Items          []itemView `json:"items"`
	ResetAvailable bool       `json:"resetAvailable"`
}

type snapshotView struct {
	Stage string `json:"stage"`
	Draft *struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"draft"`
	Progress float64 `json:"progress"`
}

func ids(feed feedView) []string {
	out := make([]string, len(feed.Items))
	for i, item := range feed.Items {
		out[i] = item.ID
	}
	return out
}

func expectIDs(t *testing.T, feed feedView, want ...string) {
	t.Helper()
	got := ids(feed)
	if len(got) != len(want) {
		t.Fatalf("unexpected feed: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected feed: got %v want %v", got, want)
		}
	}
}

func (h *Harness) feed(t *testing.T, method, path, body string) feedView {
	t.Helper()
	var feed feedView
	h.mustCall(t, method, path, body, http.StatusOK, &feed)
	return feed
}

// mustCall sends a JSON request, checks the status and decodes the data envelope into out.
func (h *Harness) mustCall(t *testing.T, method, path, body string, want int, out interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, h.URL()+path, bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	h.do(t, req, want, out)
}

func (h *Harness) do(t *testing.T, req *http.Request, want int, out interface{}) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: expected status %d, got %d (%s)", req.Method, req.URL.Path, want, resp.StatusCode, raw)
	}
	if out == nil {
		return
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("invalid response from %s: %v", req.URL.Path, err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		t.Fatalf("unexpected data from %s: %v", req.URL.Path, err)
	}
}

// attach uploads a small media file through the multipart endpoint.
func (h *Harness) attach(t *testing.T, kind, filename, contentType string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("kind", kind)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = part.Write([]byte("not really a video"))
	_ = w.Close()

	req, err := http.NewRequest("POST", h.URL()+"/v1/studio/media", &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	h.do(t, req, http.StatusCreated, nil)
}

// awaitSuccess polls the studio until the upload succeeds, checking that progress
// never decreases.
func (h *Harness) awaitSuccess(t *testing.T) snapshotView {
	t.Helper()
	deadline := time.Now().Add(h.cfg.Timeout)
	last := -1.0
	for time.Now().Before(deadline) {
		var snap snapshotView
		h.mustCall(t, "GET", "/v1/studio", "", http.StatusOK, &snap)
		if snap.Progress < last {
			t.Fatalf("progress decreased from %v to %v", last, snap.Progress)
		}
		last = snap.Progress
		if snap.Stage == string(studio.StageSuccess) {
			return snap
		}
		time.Sleep(h.cfg.UploadInterval)
	}
	t.Fatalf("upload did not reach success within %v", h.cfg.Timeout)
	return snapshotView{}
}
