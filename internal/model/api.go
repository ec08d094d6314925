// internal/model/api.go
package model

// FeedResponse is the rendered home feed.
type FeedResponse struct {
	View           View          `json:"view"`           // Active screen
	Filter         FilterState   `json:"filter"`         // Active filters
	Searching      bool          `json:"searching"`      // Loading placeholder should be shown
	Items          []ContentItem `json:"items"`          // Filtered, ranked items
	ResetAvailable bool          `json:"resetAvailable"` // No item matched; offer "reset filters"
}

// FacetsResponse lists the filter chips.
type FacetsResponse struct {
	Categories []Category `json:"categories"`
	Moods      []Mood     `json:"moods"`
}

// ViewRequest switches the active screen.
type ViewRequest struct {
	View string `json:"view"`
}

// FilterRequest sets the category and mood filters. An empty mood clears it.
type FilterRequest struct {
	Category string `json:"category"`
	Mood     string `json:"mood,omitempty"`
}

// SearchRequest submits a search query.
type SearchRequest struct {
	Query string `json:"query"`
}

// OpenRequest opens an item on the watch page.
type OpenRequest struct {
	ID string `json:"id"`
}

// WatchResponse is the watch page state.
type WatchResponse struct {
	Item     ContentItem   `json:"item"`
	Chat     []ChatMessage `json:"chat"`
	Comments []Comment     `json:"comments"`
	Summary  *Summary      `json:"summary,omitempty"`
}

// TextRequest carries a chat message or a comment.
type TextRequest struct {
	Text string `json:"text"`
}

// ChatResponse is the reply to a chat turn.
type ChatResponse struct {
	UserMessage      ChatMessage  `json:"userMessage"`
	AssistantMessage *ChatMessage `json:"assistantMessage,omitempty"`
}

// ModeRequest switches the creation track.
type ModeRequest struct {
	Mode string `json:"mode"`
}

// PromptRequest sets the AI draft prompt.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

// ManualRequest sets the manual-track form fields.
type ManualRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
	Mood        string `json:"mood,omitempty"`
}
