// Package studio drives the creation flow: an AI-drafted or manually described item
// moves through preview or upload to a published catalog entry.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/media"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/metrics"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/progress"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// Mode selects the creation track.
type Mode string

const (
	ModeAI     Mode = "ai"
	ModeManual Mode = "manual"
)

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAI, ModeManual:
		return m, nil
	default:
		return "", fmt.Errorf("invalid mode %q", s)
	}
}

// Stage is the position in the creation flow.
type Stage string

const (
	StagePrompt    Stage = "prompt"    // Prompt or manual form entry
	StagePreview   Stage = "preview"   // AI draft awaiting confirmation
	StageUploading Stage = "uploading" // Manual upload in progress
	StageSuccess   Stage = "success"   // Ready to finalize
)

// Defaults applied by Finalize.
const (
	AIAuthor           = "You (AI Assisted)"
	ManualAuthor       = "Real Human Creator"
	ManualDescription  = "A video by a real creator."
	ManualDuration     = "1:30"
	InitialViews       = "0"
	InitialTimestamp   = "Just now"
	DefaultCategory    = model.CategoryEntertainment
	DefaultMood        = model.MoodEnergetic
	DefaultCompleteLag = 500 * time.Millisecond
)

var (
	// ErrBusy is returned when a draft is requested while another is generating.
	ErrBusy = errors.New("a draft is already being generated")
	// ErrUploadNotReady is returned by StartUpload without a title and a video.
	ErrUploadNotReady = errors.New("upload needs a title and a video")
	// ErrWrongStage is returned when an operation does not apply to the current stage.
	ErrWrongStage = errors.New("operation not allowed in the current stage")
	// ErrInvalidForm is returned for unknown manual-form categories or moods.
	ErrInvalidForm = errors.New("invalid manual form")
)

// DraftError records a failed draft generation. The prompt is kept so the request
// can be retried as is.
type DraftError struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// ManualForm holds the manual-track fields. Empty category and mood take defaults.
type ManualForm struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	Mood        model.Mood     `json:"mood"`
}

// Attachment describes an attached media file.
type Attachment struct {
	Ref         string `json:"ref"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Snapshot is an immutable view of the orchestrator for rendering.
type Snapshot struct {
	Mode           Mode         `json:"mode"`
	Stage          Stage        `json:"stage"`
	Prompt         string       `json:"prompt"`
	Generating     bool         `json:"generating"`
	Draft          *model.Draft `json:"draft,omitempty"`
	DraftError     *DraftError  `json:"draftError,omitempty"`
	Manual         ManualForm   `json:"manual"`
	Video          *Attachment  `json:"video,omitempty"`
	Thumbnail      *Attachment  `json:"thumbnail,omitempty"`
	Progress       float64      `json:"progress"`
	UploadError    string       `json:"uploadError,omitempty"`
	CanStartUpload bool         `json:"canStartUpload"`
}

// Drafter generates item metadata from a prompt.
type Drafter interface {
	Draft(ctx context.Context, prompt string) (model.Draft, error)
}

// Uploader prepares the transfer of an attached video.
type Uploader interface {
	Prepare(blob media.Blob) media.Upload
}

// Publisher adds a finalized item to the catalog.
type Publisher interface {
	Publish(ctx context.Context, item model.ContentItem) error
}

// Options tunes an Orchestrator.
type Options struct {
	CompletionDelay time.Duration    // Pause between 100% progress and success
	Now             func() time.Time // Clock used for ids and seeds
}

// Orchestrator is the creation state machine. All methods are safe for concurrent use.
type Orchestrator struct {
	drafter   Drafter
	uploader  Uploader
	publisher Publisher
	registry  *media.Registry
	metrics   *metrics.Metrics
	delay     time.Duration
	now       func() time.Time

	mu          sync.Mutex
	mode        Mode
	stage       Stage
	prompt      string
	generating  bool
	draft       *model.Draft
	draftErr    *DraftError
	manual      ManualForm
	video       *media.Blob
	thumbnail   *media.Blob
	progress    float64
	uploadErr   string
	uploadedURL string
	epoch       uint64             // Bumped on reset; stale uploads compare against it
	cancel      context.CancelFunc // Cancels the running upload
}

// New creates an orchestrator in its initial state.
func New(drafter Drafter, uploader Uploader, publisher Publisher, registry *media.Registry, m *metrics.Metrics, opts Options) *Orchestrator {
	if opts.CompletionDelay == 0 {
		opts.CompletionDelay = DefaultCompleteLag
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		drafter:   drafter,
		uploader:  uploader,
		publisher: publisher,
		registry:  registry,
		metrics:   m,
		delay:     opts.CompletionDelay,
		now:       opts.Now,
		mode:      ModeAI,
		stage:     StagePrompt,
	}
}

// SetMode switches the creation track. Only allowed while entering the prompt or form.
func (o *Orchestrator) SetMode(mode Mode) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePrompt {
		return ErrWrongStage
	}
	o.mode = mode
	return nil
}

// SetPrompt sets the AI draft prompt.
func (o *Orchestrator) SetPrompt(prompt string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePrompt {
		return ErrWrongStage
	}
	o.prompt = prompt
	return nil
}

// SetManual replaces the manual-track form.
func (o *Orchestrator) SetManual(form ManualForm) error {
	if form.Category != "" && (form.Category == model.CategoryAll || !model.IsFilterCategory(form.Category)) {
		return fmt.Errorf("%w: category %q", ErrInvalidForm, form.Category)
	}
	if form.Mood != "" && !form.Mood.Valid() {
		return fmt.Errorf("%w: mood %q", ErrInvalidForm, form.Mood)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePrompt {
		return ErrWrongStage
	}
	o.manual = form
	return nil
}

// GenerateDraft asks the drafter for metadata. An empty prompt is a no-op. On
// failure the orchestrator stays in the prompt stage with a retryable DraftError.
func (o *Orchestrator) GenerateDraft(ctx context.Context) error {
	ctx, span := telemetry.Tracer().Start(ctx, "studio.GenerateDraft")
	defer span.End()

	o.mu.Lock()
	if o.stage != StagePrompt {
		o.mu.Unlock()
		return ErrWrongStage
	}
	if o.generating {
		o.mu.Unlock()
		return ErrBusy
	}
	prompt := strings.TrimSpace(o.prompt)
	if prompt == "" {
		o.mu.Unlock()
		return nil
	}
	o.generating = true
	o.draftErr = nil
	epoch := o.epoch
	o.mu.Unlock()

	draft, err := o.drafter.Draft(ctx, prompt)

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		// Closed while generating.
		return nil
	}
	o.generating = false
	if err != nil {
		slog.WarnContext(ctx, "draft generation failed", "error", err)
		o.draftErr = &DraftError{Message: "Couldn't generate a draft. Try again.", Retryable: true}
		return err
	}
	o.draft = &draft
	o.stage = StagePreview
	return nil
}

// DiscardDraft returns from preview to the prompt stage.
func (o *Orchestrator) DiscardDraft() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePreview {
		return ErrWrongStage
	}
	o.draft = nil
	o.stage = StagePrompt
	return nil
}

// ConfirmDraft accepts the draft.
func (o *Orchestrator) ConfirmDraft() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePreview {
		return ErrWrongStage
	}
	o.stage = StageSuccess
	return nil
}

// AttachVideo stores the video under a temporary reference, releasing any previous one.
func (o *Orchestrator) AttachVideo(name, contentType string, data []byte) (Attachment, error) {
	return o.attach(&o.video, name, contentType, data)
}

// AttachThumbnail stores the thumbnail under a temporary reference, releasing any previous one.
func (o *Orchestrator) AttachThumbnail(name, contentType string, data []byte) (Attachment, error) {
	return o.attach(&o.thumbnail, name, contentType, data)
}

func (o *Orchestrator) attach(slot **media.Blob, name, contentType string, data []byte) (Attachment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StagePrompt {
		return Attachment{}, ErrWrongStage
	}
	if *slot != nil {
		o.registry.Release((*slot).Ref)
	}
	blob := o.registry.Acquire(name, contentType, data)
	*slot = &blob
	return attachmentOf(&blob), nil
}

// CanStartUpload reports whether the manual track has a title and a video.
func (o *Orchestrator) CanStartUpload() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.canStartUpload()
}

func (o *Orchestrator) canStartUpload() bool {
	return o.stage == StagePrompt &&
		o.mode == ModeManual &&
		strings.TrimSpace(o.manual.Title) != "" &&
		o.video != nil
}

// StartUpload begins uploading the attached video in the background. Progress only
// increases; after reaching 100 the stage becomes success once, after the
// completion delay.
func (o *Orchestrator) StartUpload(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.canStartUpload() {
		return ErrUploadNotReady
	}

	upload := o.uploader.Prepare(*o.video)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	o.cancel = cancel
	o.stage = StageUploading
	o.progress = 0
	o.uploadErr = ""
	epoch := o.epoch

	go o.runUpload(runCtx, cancel, upload, epoch)
	return nil
}

func (o *Orchestrator) runUpload(ctx context.Context, cancel context.CancelFunc, upload media.Upload, epoch uint64) {
	defer cancel()
	ctx, span := telemetry.Tracer().Start(ctx, "studio.Upload")
	defer span.End()

	start := time.Now()
	err := upload.Start(ctx, progress.Observer{
		OnTick: func(p float64) {
			o.mu.Lock()
			defer o.mu.Unlock()
			if epoch == o.epoch && p > o.progress {
				o.progress = p
			}
		},
	})
	if o.metrics != nil {
		o.metrics.UploadDuration.WithLabelValues("video").Observe(time.Since(start).Seconds())
	}

	var url string
	if err == nil {
		url, err = upload.URL(ctx)
	}
	if err != nil {
		if ctx.Err() == nil {
			slog.ErrorContext(ctx, "upload failed", "error", err)
		}
		o.mu.Lock()
		defer o.mu.Unlock()
		if epoch == o.epoch && o.stage == StageUploading {
			o.stage = StagePrompt
			o.progress = 0
			o.uploadErr = "Upload failed. Try again."
			o.cancel = nil
		}
		return
	}

	o.mu.Lock()
	if epoch == o.epoch {
		o.progress = 100
	}
	o.mu.Unlock()

	select {
	case <-ctx.Done():
		return
	case <-time.After(o.delay):
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch || o.stage != StageUploading {
		return
	}
	o.uploadedURL = url
	o.stage = StageSuccess
	o.cancel = nil
}

// Finalize builds the new item, publishes it and resets the orchestrator. If
// publishing fails the stage stays success so the call can be retried.
// The publisher is called with the orchestrator locked; it must return promptly and
// must not call back into the orchestrator.
func (o *Orchestrator) Finalize(ctx context.Context) (model.ContentItem, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "studio.Finalize")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stage != StageSuccess {
		return model.ContentItem{}, ErrWrongStage
	}
	item := o.buildItem()
	track := string(o.mode)
	if o.draft == nil {
		track = string(ModeManual)
	}

	if err := o.publisher.Publish(ctx, item); err != nil {
		return model.ContentItem{}, err
	}
	if o.metrics != nil {
		o.metrics.PublishTotal.WithLabelValues(track).Inc()
	}
	o.reset()

	slog.InfoContext(ctx, "item published", "item_id", item.ID, "track", track)
	return item, nil
}

func (o *Orchestrator) buildItem() model.ContentItem {
	ms := strconv.FormatInt(o.now().UnixMilli(), 10)
	seeded := "https://picsum.photos/seed/" + ms + "/800/450"

	if o.mode == ModeAI && o.draft != nil {
		return model.ContentItem{
			ID:          "v-ai-" + ms,
			Title:       o.draft.Title,
			Description: o.draft.Description,
			Thumbnail:   seeded,
			VideoURL:    catalog.DefaultVideoURL,
			Author:      AIAuthor,
			Views:       InitialViews,
			Timestamp:   InitialTimestamp,
			Category:    model.CategoryInnovation,
			Duration:    o.draft.Duration,
			Mood:        o.draft.Mood,
			Comments:    []model.Comment{},
		}
	}

	item := model.ContentItem{
		ID:          "v-man-" + ms,
		Title:       o.manual.Title,
		Description: o.manual.Description,
		Thumbnail:   seeded,
		VideoURL:    o.uploadedURL,
		Author:      ManualAuthor,
		Views:       InitialViews,
		Timestamp:   InitialTimestamp,
		Category:    o.manual.Category,
		Duration:    ManualDuration,
		Mood:        o.manual.Mood,
		Comments:    []model.Comment{},
	}
	if item.Description == "" {
		item.Description = ManualDescription
	}
	if o.thumbnail != nil {
		item.Thumbnail = o.thumbnail.Ref
	}
	if item.VideoURL == "" && o.video != nil {
		item.VideoURL = o.video.Ref
	}
	if item.VideoURL == "" {
		item.VideoURL = catalog.DefaultVideoURL
	}
	if item.Category == "" {
		item.Category = DefaultCategory
	}
	if item.Mood == "" {
		item.Mood = DefaultMood
	}
	return item
}

// Close cancels any running upload, releases attached media and resets to the
// initial state. It is valid from every stage.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reset()
}

func (o *Orchestrator) reset() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.video != nil {
		o.registry.Release(o.video.Ref)
	}
	if o.thumbnail != nil {
		o.registry.Release(o.thumbnail.Ref)
	}

	o.epoch++
	o.mode = ModeAI
	o.stage = StagePrompt
	o.prompt = ""
	o.generating = false
	o.draft = nil
	o.draftErr = nil
	o.manual = ManualForm{}
	o.video = nil
	o.thumbnail = nil
	o.progress = 0
	o.uploadErr = ""
	o.uploadedURL = ""
	o.cancel = nil
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Snapshot{
		Mode:           o.mode,
		Stage:          o.stage,
		Prompt:         o.prompt,
		Generating:     o.generating,
		Manual:         o.manual,
		Progress:       o.progress,
		UploadError:    o.uploadErr,
		CanStartUpload: o.canStartUpload(),
	}
	if o.draft != nil {
		d := *o.draft
		s.Draft = &d
	}
	if o.draftErr != nil {
		e := *o.draftErr
		s.DraftError = &e
	}
	if o.video != nil {
		a := attachmentOf(o.video)
		s.Video = &a
	}
	if o.thumbnail != nil {
		a := attachmentOf(o.thumbnail)
		s.Thumbnail = &a
	}
	return s
}

func attachmentOf(b *media.Blob) Attachment {
	return Attachment{Ref: b.Ref, Name: b.Name, ContentType: b.ContentType, Size: b.Size()}
}
