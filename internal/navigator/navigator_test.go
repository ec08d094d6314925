package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

func always(string) bool { return true }

func TestInitialStateIsHome(t *testing.T) {
	n := New()
	assert.Equal(t, State{View: model.ViewHome}, n.State())
}

func TestOpenSelectsAndSwitchesToWatch(t *testing.T) {
	n := New()
	n.Open(model.ContentItem{ID: "v2"})

	assert.Equal(t, State{View: model.ViewWatch, Selected: "v2"}, n.State())
	item, ok := n.Player(always)
	assert.True(t, ok)
	assert.Equal(t, "v2", item.ID)
}

func TestWatchWithoutSelectionHasNoPlayer(t *testing.T) {
	n := New()
	n.Navigate(model.ViewWatch)

	_, ok := n.Player(always)
	assert.False(t, ok)
}

func TestPlayerRequiresItemInCatalog(t *testing.T) {
	n := New()
	n.Open(model.ContentItem{ID: "gone"})

	_, ok := n.Player(func(id string) bool { return id != "gone" })
	assert.False(t, ok)
}

func TestLeavingWatchHidesPlayer(t *testing.T) {
	n := New()
	n.Open(model.ContentItem{ID: "v1"})
	n.Navigate(model.ViewDiscovery)

	_, ok := n.Player(always)
	assert.False(t, ok)

	n.Navigate(model.ViewWatch)
	item, ok := n.Player(always)
	assert.True(t, ok)
	assert.Equal(t, "v1", item.ID)
}
