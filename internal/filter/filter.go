// Package filter narrows a displayed list by category and mood.
package filter

import "github.com/RegistryAccord/registryaccord-novatube-go/internal/model"

// Matches reports whether item passes the category and mood selections.
func Matches(item model.ContentItem, state model.FilterState) bool {
	state = state.Normalized()
	categoryMatch := state.Category == model.CategoryAll || item.Category == state.Category
	moodMatch := state.Mood == nil || item.Mood == *state.Mood
	return categoryMatch && moodMatch
}

// Apply returns the items that pass state, preserving their order.
// It never modifies items.
func Apply(items []model.ContentItem, state model.FilterState) []model.ContentItem {
	out := make([]model.ContentItem, 0, len(items))
	for _, item := range items {
		if Matches(item, state) {
			out = append(out, item)
		}
	}
	return out
}
