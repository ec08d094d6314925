package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

func moodPtr(m model.Mood) *model.Mood { return &m }

func TestApplyAllWithoutMoodReturnsEverything(t *testing.T) {
	items := catalog.MockItems()

	got := Apply(items, model.FilterState{Category: model.CategoryAll})
	assert.Equal(t, items, got)

	// The zero value behaves like All.
	assert.Equal(t, items, Apply(items, model.FilterState{}))
}

func TestApplyCategory(t *testing.T) {
	got := Apply(catalog.MockItems(), model.FilterState{Category: model.CategoryScience})

	if assert.Len(t, got, 1) {
		assert.Equal(t, "v1", got[0].ID)
	}
}

func TestApplyCategoryAndMoodWithoutMatch(t *testing.T) {
	got := Apply(catalog.MockItems(), model.FilterState{
		Category: model.CategoryScience,
		Mood:     moodPtr(model.MoodCalm),
	})
	assert.Empty(t, got)
}

func TestApplyMoodOnly(t *testing.T) {
	got := Apply(catalog.MockItems(), model.FilterState{Mood: moodPtr(model.MoodCalm)})

	if assert.Len(t, got, 1) {
		assert.Equal(t, "v2", got[0].ID)
	}
}

func TestApplyPreservesOrderAndIsIdempotent(t *testing.T) {
	items := catalog.Rank(catalog.MockItems(), []string{"v5", "v3"})
	state := model.FilterState{Category: model.CategoryAll, Mood: moodPtr(model.MoodDark)}

	once := Apply(items, state)
	twice := Apply(once, state)
	assert.Equal(t, once, twice)

	all := Apply(items, model.FilterState{})
	assert.Equal(t, "v5", all[0].ID)
	assert.Equal(t, "v3", all[1].ID)
}
