package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/registryaccord-novatube-go/internal/model"
)

func ids(items []model.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

func TestNewStoreCopiesSeed(t *testing.T) {
	seed := MockItems()
	s := NewStore(seed)
	seed[0].Title = "mutated"

	got, ok := s.Get("v1")
	require.True(t, ok)
	assert.Equal(t, "The Future of Neural Networks", got.Title)
	assert.Equal(t, ids(s.Master()), ids(s.Displayed()))
}

func TestPublishPrependsToBothLists(t *testing.T) {
	s := NewStore(MockItems())
	s.ApplyRanking([]string{"v3"})

	item := model.ContentItem{ID: "v-new", Mood: model.MoodCalm}
	s.Publish(item)

	assert.Equal(t, "v-new", s.Master()[0].ID)
	assert.Equal(t, "v-new", s.Displayed()[0].ID)
	assert.Equal(t, 6, s.Len())
}

func TestApplyRankingOrdersRankedFirst(t *testing.T) {
	s := NewStore(MockItems())
	s.ApplyRanking([]string{"v4", "v2"})

	assert.Equal(t, []string{"v4", "v2", "v1", "v3", "v5"}, ids(s.Displayed()))
	// Master order is untouched.
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, ids(s.Master()))
}

func TestApplyRankingIgnoresUnknownAndDuplicateIDs(t *testing.T) {
	s := NewStore(MockItems())
	s.ApplyRanking([]string{"ghost", "v5", "v1", "v5"})

	assert.Equal(t, []string{"v5", "v1", "v2", "v3", "v4"}, ids(s.Displayed()))
}

func TestApplyRankingEmptyKeepsMasterOrder(t *testing.T) {
	s := NewStore(MockItems())
	s.ApplyRanking(nil)

	assert.Equal(t, ids(s.Master()), ids(s.Displayed()))
}

func TestRankStability(t *testing.T) {
	items := MockItems()
	tests := []struct {
		name    string
		ranking []string
		want    []string
	}{
		{"full reverse", []string{"v5", "v4", "v3", "v2", "v1"}, []string{"v5", "v4", "v3", "v2", "v1"}},
		{"single", []string{"v3"}, []string{"v3", "v1", "v2", "v4", "v5"}},
		{"tail ranked", []string{"v5", "v4"}, []string{"v5", "v4", "v1", "v2", "v3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rank(items, tt.ranking)
			assert.Equal(t, tt.want, ids(got))
			assert.Len(t, got, len(items))
		})
	}
}

func TestResetRestoresMaster(t *testing.T) {
	s := NewStore(MockItems())
	s.ApplyRanking([]string{"v5"})
	s.Reset()

	assert.Equal(t, ids(s.Master()), ids(s.Displayed()))
}

func TestMockItemsAreValid(t *testing.T) {
	for _, item := range MockItems() {
		assert.NoError(t, item.Validate(), item.ID)
	}
}
