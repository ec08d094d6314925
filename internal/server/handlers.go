package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	errordefs "github.com/RegistryAccord/registryaccord-novatube-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/studio"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/telemetry"
)

// multipartMemory is the in-memory part of a parsed upload form.
const multipartMemory = 32 << 20

// handleFeed renders the home feed
func (m *Mux) handleFeed(w http.ResponseWriter, r *http.Request) {
	_, span := telemetry.Tracer().Start(r.Context(), "handleFeed")
	defer span.End()

	feed := m.app.Feed()
	span.SetAttributes(attribute.Int("items", len(feed.Items)))
	m.writeSuccess(w, http.StatusOK, feed)
}

// handleFacets lists the filter chips
func (m *Mux) handleFacets(w http.ResponseWriter, r *http.Request) {
	m.writeSuccess(w, http.StatusOK, model.FacetsResponse{
		Categories: model.Categories,
		Moods:      model.Moods,
	})
}

// handleSetView switches the active screen
func (m *Mux) handleSetView(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleSetView")
	defer span.End()

	var req model.ViewRequest
	if !m.decode(w, r, &req) {
		return
	}
	view, err := model.ParseView(req.View)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, err.Error(), correlationID(ctx)))
		return
	}
	m.app.SetView(view)
	m.writeSuccess(w, http.StatusOK, m.app.Navigation())
}

// handleSetFilter replaces the category and mood filters
func (m *Mux) handleSetFilter(w http.ResponseWriter, r *http.Request) {
	_, span := telemetry.Tracer().Start(r.Context(), "handleSetFilter")
	defer span.End()

	var req model.FilterRequest
	if !m.decode(w, r, &req) {
		return
	}
	state := model.FilterState{Category: model.Category(req.Category)}
	if req.Mood != "" {
		mood := model.Mood(req.Mood)
		state.Mood = &mood
	}
	span.SetAttributes(attribute.String("category", req.Category), attribute.String("mood", req.Mood))

	if err := m.app.SetFilter(state); err != nil {
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusOK, m.app.Feed())
}

// handleResetFilters clears filters and the search ranking
func (m *Mux) handleResetFilters(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleResetFilters")
	defer span.End()

	m.app.ResetFilters(ctx)
	m.writeSuccess(w, http.StatusOK, m.app.Feed())
}

// handleSearch ranks the catalog for a query and returns the resulting feed
func (m *Mux) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleSearch")
	defer span.End()

	var req model.SearchRequest
	if !m.decode(w, r, &req) {
		return
	}
	outcome := m.app.Search(ctx, req.Query)
	span.SetAttributes(attribute.String("outcome", string(outcome)))

	w.Header().Set("X-Search-Outcome", string(outcome))
	m.writeSuccess(w, http.StatusOK, m.app.Feed())
}

// handleOpen selects an item for playback
func (m *Mux) handleOpen(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleOpen")
	defer span.End()

	var req model.OpenRequest
	if !m.decode(w, r, &req) {
		return
	}
	if req.ID == "" {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "id is required", correlationID(ctx)))
		return
	}
	span.SetAttributes(attribute.String("item_id", req.ID))

	if _, err := m.app.OpenItem(req.ID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, err, nil)
		return
	}
	m.writeWatch(w, r)
}

// handleWatch returns the watch page for the selected item
func (m *Mux) handleWatch(w http.ResponseWriter, r *http.Request) {
	_, span := telemetry.Tracer().Start(r.Context(), "handleWatch")
	defer span.End()

	m.writeWatch(w, r)
}

func (m *Mux) writeWatch(w http.ResponseWriter, r *http.Request) {
	item, ok := m.app.Player()
	if !ok {
		err := errordefs.New(errordefs.NOVA_NOT_FOUND, "no item selected", correlationID(r.Context()))
		m.writeErrorDef(w, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, model.WatchResponse{
		Item:     item,
		Chat:     m.app.Watch().Chat(),
		Comments: m.app.Comments().List(item),
		Summary:  m.app.Watch().Summary(),
	})
}

// handleSummary generates or returns the cached summary of the open item
func (m *Mux) handleSummary(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleSummary")
	defer span.End()

	summary, err := m.app.Watch().Summarize(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusOK, summary)
}

// handleChatHistory returns the chat transcript of the open item
func (m *Mux) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	m.writeSuccess(w, http.StatusOK, m.app.Watch().Chat())
}

// handleChatSend sends a chat message and waits for the assistant's reply
func (m *Mux) handleChatSend(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleChatSend")
	defer span.End()

	var req model.TextRequest
	if !m.decode(w, r, &req) {
		return
	}
	user, reply, err := m.app.Watch().Send(ctx, req.Text)
	if err != nil {
		m.fail(w, r, err, nil)
		return
	}
	span.SetAttributes(attribute.Bool("stale", reply == nil))
	m.writeSuccess(w, http.StatusOK, model.ChatResponse{UserMessage: user, AssistantMessage: reply})
}

// handleListComments returns the comment thread of the open item
func (m *Mux) handleListComments(w http.ResponseWriter, r *http.Request) {
	item, ok := m.app.Watch().Item()
	if !ok {
		err := errordefs.New(errordefs.NOVA_CONFLICT, "no item is open", correlationID(r.Context()))
		m.writeErrorDef(w, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, m.app.Comments().List(item))
}

// handlePostComment prepends a comment to the open item's thread
func (m *Mux) handlePostComment(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handlePostComment")
	defer span.End()

	var req model.TextRequest
	if !m.decode(w, r, &req) {
		return
	}
	item, ok := m.app.Watch().Item()
	if !ok {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_CONFLICT, "no item is open", correlationID(ctx)))
		return
	}
	comment, err := m.app.Comments().Post(ctx, item, req.Text)
	if err != nil {
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusCreated, comment)
}

// handleStudio returns the creation state
func (m *Mux) handleStudio(w http.ResponseWriter, r *http.Request) {
	m.writeSuccess(w, http.StatusOK, m.app.Studio().Snapshot())
}

// handleStudioMode switches between the AI and manual tracks
func (m *Mux) handleStudioMode(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleStudioMode")
	defer span.End()

	var req model.ModeRequest
	if !m.decode(w, r, &req) {
		return
	}
	mode, err := studio.ParseMode(req.Mode)
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, err.Error(), correlationID(ctx)))
		return
	}
	m.studioResult(w, r, m.app.Studio().SetMode(mode))
}

// handleStudioPrompt sets the draft prompt
func (m *Mux) handleStudioPrompt(w http.ResponseWriter, r *http.Request) {
	var req model.PromptRequest
	if !m.decode(w, r, &req) {
		return
	}
	m.studioResult(w, r, m.app.Studio().SetPrompt(req.Prompt))
}

// handleStudioManual sets the manual form fields
func (m *Mux) handleStudioManual(w http.ResponseWriter, r *http.Request) {
	var req model.ManualRequest
	if !m.decode(w, r, &req) {
		return
	}
	m.studioResult(w, r, m.app.Studio().SetManual(studio.ManualForm{
		Title:       req.Title,
		Description: req.Description,
		Category:    model.Category(req.Category),
		Mood:        model.Mood(req.Mood),
	}))
}

// handleStudioDraft generates a draft from the current prompt
func (m *Mux) handleStudioDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleStudioDraft")
	defer span.End()

	o := m.app.Studio()
	err := o.GenerateDraft(ctx)
	if err != nil && !errors.Is(err, studio.ErrBusy) && !errors.Is(err, studio.ErrWrongStage) {
		// The orchestrator keeps the prompt and records a retryable error.
		span.SetStatus(codes.Error, err.Error())
		e := errordefs.NewWithDetails(errordefs.NOVA_UNAVAILABLE, "draft generation failed", correlationID(ctx), o.Snapshot())
		m.writeErrorDef(w, e)
		return
	}
	m.studioResult(w, r, err)
}

// handleStudioDiscard drops the draft and returns to the prompt
func (m *Mux) handleStudioDiscard(w http.ResponseWriter, r *http.Request) {
	m.studioResult(w, r, m.app.Studio().DiscardDraft())
}

// handleStudioConfirm accepts the draft
func (m *Mux) handleStudioConfirm(w http.ResponseWriter, r *http.Request) {
	m.studioResult(w, r, m.app.Studio().ConfirmDraft())
}

// handleStudioMedia attaches a video or thumbnail from a multipart form
func (m *Mux) handleStudioMedia(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleStudioMedia")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, m.maxMediaSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			e := errordefs.New(errordefs.NOVA_MEDIA_SIZE, fmt.Sprintf("media size exceeds limit of %d bytes", m.maxMediaSize), correlationID(ctx))
			m.writeErrorDef(w, e)
			return
		}
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "invalid multipart form", correlationID(ctx)))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	kind := r.FormValue("kind")
	if kind != "video" && kind != "thumbnail" {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "kind must be video or thumbnail", correlationID(ctx)))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_VALIDATION, "file is required", correlationID(ctx)))
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	span.SetAttributes(
		attribute.String("kind", kind),
		attribute.String("mimeType", mimeType),
		attribute.Int64("size", header.Size),
	)

	// Validate media size limit
	if header.Size > m.maxMediaSize {
		e := errordefs.New(errordefs.NOVA_MEDIA_SIZE, fmt.Sprintf("media size exceeds limit of %d bytes", m.maxMediaSize), correlationID(ctx))
		m.writeErrorDef(w, e)
		return
	}

	// Validate media type
	allowed := false
	for _, t := range m.allowedMimeTypes {
		if mimeType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		e := errordefs.New(errordefs.NOVA_MEDIA_TYPE, fmt.Sprintf("media type %s is not allowed", mimeType), correlationID(ctx))
		m.writeErrorDef(w, e)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.writeErrorDef(w, errordefs.New(errordefs.NOVA_INTERNAL, "failed to read media", correlationID(ctx)))
		return
	}

	o := m.app.Studio()
	var attachment studio.Attachment
	if kind == "video" {
		attachment, err = o.AttachVideo(header.Filename, mimeType, data)
	} else {
		attachment, err = o.AttachThumbnail(header.Filename, mimeType, data)
	}
	if err != nil {
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusCreated, attachment)
}

// handleStudioUpload starts the video upload
func (m *Mux) handleStudioUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleStudioUpload")
	defer span.End()

	o := m.app.Studio()
	if err := o.StartUpload(ctx); err != nil {
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusAccepted, o.Snapshot())
}

// handleStudioFinalize publishes the new item
func (m *Mux) handleStudioFinalize(w http.ResponseWriter, r *http.Request) {
	ctx, span := telemetry.Tracer().Start(r.Context(), "handleStudioFinalize")
	defer span.End()

	item, err := m.app.Studio().Finalize(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		m.fail(w, r, err, nil)
		return
	}
	span.SetAttributes(attribute.String("item_id", item.ID))
	m.writeSuccess(w, http.StatusCreated, item)
}

// handleStudioClose discards all creation state
func (m *Mux) handleStudioClose(w http.ResponseWriter, r *http.Request) {
	o := m.app.Studio()
	o.Close()
	m.writeSuccess(w, http.StatusOK, o.Snapshot())
}

// studioResult writes the studio snapshot, or err mapped onto the error taxonomy.
func (m *Mux) studioResult(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		m.fail(w, r, err, nil)
		return
	}
	m.writeSuccess(w, http.StatusOK, m.app.Studio().Snapshot())
}
