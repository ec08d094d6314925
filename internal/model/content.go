// internal/model/content.go
// Package model defines the data structures used throughout the NovaTube service.
// These structures represent the catalog items, comments, chat turns and the
// view/filter state owned by the application controller.
package model

import (
	"errors"
	"fmt"
	"time"
)

// Mood is a fixed categorical tag describing an item's tone.
type Mood string

const (
	MoodEnergetic Mood = "Energetic"
	MoodCalm      Mood = "Calm"
	MoodFocus     Mood = "Focus"
	MoodDark      Mood = "Dark"
	MoodFunny     Mood = "Funny"
)

// Moods lists every allowed mood in display order.
var Moods = []Mood{MoodEnergetic, MoodCalm, MoodFocus, MoodDark, MoodFunny}

// Valid reports whether m is one of the five allowed moods.
func (m Mood) Valid() bool {
	for _, allowed := range Moods {
		if m == allowed {
			return true
		}
	}
	return false
}

// ParseMood converts s into a Mood, rejecting anything outside the allowed set.
func ParseMood(s string) (Mood, error) {
	m := Mood(s)
	if !m.Valid() {
		return "", fmt.Errorf("invalid mood %q", s)
	}
	return m, nil
}

// Category groups catalog items for filtering.
type Category string

const (
	CategoryAll           Category = "All" // no category filter
	CategoryScience       Category = "Science"
	CategoryEducation     Category = "Education"
	CategoryArt           Category = "Art"
	CategorySports        Category = "Sports"
	CategoryEntertainment Category = "Entertainment"
	CategoryMusic         Category = "Music"
	CategoryGaming        Category = "Gaming"

	// CategoryInnovation is assigned to AI-assisted uploads. It is a valid item
	// category but is not offered as a filter chip.
	CategoryInnovation Category = "Innovation"
)

// Categories lists the filter chips in display order, starting with All.
var Categories = []Category{
	CategoryAll,
	CategoryScience,
	CategoryEducation,
	CategoryArt,
	CategorySports,
	CategoryEntertainment,
	CategoryMusic,
	CategoryGaming,
}

// IsFilterCategory reports whether c is one of the filter chips.
func IsFilterCategory(c Category) bool {
	for _, allowed := range Categories {
		if c == allowed {
			return true
		}
	}
	return false
}

// Comment is a viewer comment on a catalog item.
// Comments are created on submission, prepended to the item's thread, and never mutated.
type Comment struct {
	ID        string `json:"id"`        // Unique comment identifier
	Author    string `json:"author"`    // Display name of the commenter
	Text      string `json:"text"`      // Comment body
	Timestamp string `json:"timestamp"` // Relative-time label (e.g. "2 hours ago")
	Likes     int    `json:"likes"`     // Like count, never negative
}

// ContentItem is a single video in the catalog.
// Items are immutable once published.
type ContentItem struct {
	ID          string    `json:"id"`                 // Unique within the catalog
	Title       string    `json:"title"`              // Display title
	Description string    `json:"description"`        // Long description
	Thumbnail   string    `json:"thumbnail"`          // Thumbnail reference
	VideoURL    string    `json:"videoUrl"`           // Playable media reference
	Author      string    `json:"author"`             // Author label
	Views       string    `json:"views"`              // View-count label (e.g. "1.2M")
	Timestamp   string    `json:"timestamp"`          // Relative-time label
	Category    Category  `json:"category"`           // Category tag
	Duration    string    `json:"duration"`           // Duration label (mm:ss)
	Mood        Mood      `json:"mood"`               // One of the five moods
	Comments    []Comment `json:"comments,omitempty"` // Seeded comment thread
}

// ErrInvalidItem is returned by ContentItem.Validate.
var ErrInvalidItem = errors.New("invalid content item")

// Validate checks the item invariants: a non-empty id and an allowed mood.
func (c ContentItem) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if !c.Mood.Valid() {
		return fmt.Errorf("%w: mood %q is not allowed", ErrInvalidItem, c.Mood)
	}
	return nil
}

// Role identifies the speaker of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one turn in a watch-page conversation.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// View is a top-level screen.
type View string

const (
	ViewHome      View = "home"
	ViewWatch     View = "watch"
	ViewSearch    View = "search"
	ViewDiscovery View = "discovery"
)

// ParseView converts s into a View.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewHome, ViewWatch, ViewSearch, ViewDiscovery:
		return v, nil
	default:
		return "", fmt.Errorf("invalid view %q", s)
	}
}

// FilterState holds the active category and mood selections.
// A nil Mood means no mood filter; an empty Category is treated as All.
type FilterState struct {
	Category Category `json:"category"`
	Mood     *Mood    `json:"mood,omitempty"`
}

// Normalized returns a copy with an empty category replaced by All.
func (f FilterState) Normalized() FilterState {
	if f.Category == "" {
		f.Category = CategoryAll
	}
	return f
}

// Draft is AI-generated candidate metadata pending confirmation.
type Draft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Mood        Mood   `json:"mood"`
	Duration    string `json:"duration"`
}

// Summary is the AI summary of an item shown on the watch page.
type Summary struct {
	Summary      string   `json:"summary"`
	KeyTakeaways []string `json:"keyTakeaways"`
	Vibe         string   `json:"vibe"`
}
