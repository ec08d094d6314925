// Package navigator tracks the active screen and the item selected for playback.
package navigator

import (
	"sync"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

// State is a snapshot of the navigator.
type State struct {
	View     model.View `json:"view"`
	Selected string     `json:"selected,omitempty"` // Item id, set by Open
}

// Navigator is a small state machine over the top-level screens.
// It starts on Home and has no terminal state.
type Navigator struct {
	mu       sync.RWMutex
	view     model.View
	selected *model.ContentItem
}

// New returns a navigator on the Home screen.
func New() *Navigator {
	return &Navigator{view: model.ViewHome}
}

// Navigate switches to view. The selection is kept so that returning to Watch
// shows the last opened item.
func (n *Navigator) Navigate(view model.View) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.view = view
}

// Open selects item and switches to Watch.
func (n *Navigator) Open(item model.ContentItem) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selected = &item
	n.view = model.ViewWatch
}

// State returns the current screen and selection.
func (n *Navigator) State() State {
	n.mu.RLock()
	defer n.mu.RUnlock()

	st := State{View: n.view}
	if n.selected != nil {
		st.Selected = n.selected.ID
	}
	return st
}

// Player returns the item to play. It reports false unless the screen is Watch,
// an item is selected, and exists still finds that item in the catalog.
func (n *Navigator) Player(exists func(id string) bool) (model.ContentItem, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.view != model.ViewWatch || n.selected == nil {
		return model.ContentItem{}, false
	}
	if exists != nil && !exists(n.selected.ID) {
		return model.ContentItem{}, false
	}
	return *n.selected, true
}
