package organizer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetSaveAssignsIDAndTimestamps(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.json")
	store, err := NewFilterPresetStore(path)
	require.NoError(t, err)

	saved, err := store.Save(FilterPreset{
		Name: "Best of January",
		Criteria: FilterCriteria{
			DateStart: "2024-01-01",
			DateEnd:   "2024-01-31",
			RatingMin: 4,
		},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())
	assert.False(t, saved.UpdatedAt.IsZero())
}

func TestPresetLookupByNameIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.json")
	store, err := NewFilterPresetStore(path)
	require.NoError(t, err)

	_, err = store.Save(FilterPreset{Name: "Travel"})
	require.NoError(t, err)

	preset, ok := store.GetByName("travel")
	require.True(t, ok)
	assert.Equal(t, "Travel", preset.Name)
}

func TestPresetsSurviveReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.json")

	store, err := NewFilterPresetStore(path)
	require.NoError(t, err)
	saved, err := store.Save(FilterPreset{
		Name:     "Five stars",
		Criteria: FilterCriteria{RatingMin: 5},
	})
	require.NoError(t, err)

	reloaded, err := NewFilterPresetStore(path)
	require.NoError(t, err)

	preset, ok := reloaded.GetByID(saved.ID)
	require.True(t, ok)
	assert.Equal(t, 5, preset.Criteria.RatingMin)
}

func TestPresetDelete(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.json")
	store, err := NewFilterPresetStore(path)
	require.NoError(t, err)

	saved, err := store.Save(FilterPreset{Name: "Temp"})
	require.NoError(t, err)

	require.NoError(t, store.Delete(saved.ID))
	_, ok := store.GetByID(saved.ID)
	assert.False(t, ok)
	_, ok = store.GetByName("Temp")
	assert.False(t, ok)

	// Deleting an unknown id is a no-op.
	assert.NoError(t, store.Delete("missing"))
}

func TestPresetListIsSortedByName(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "presets.json")
	store, err := NewFilterPresetStore(path)
	require.NoError(t, err)

	for _, name := range []string{"zoo", "Alps", "misc"} {
		_, err := store.Save(FilterPreset{Name: name})
		require.NoError(t, err)
	}

	presets := store.List()
	require.Len(t, presets, 3)
	assert.Equal(t, "Alps", presets[0].Name)
	assert.Equal(t, "misc", presets[1].Name)
	assert.Equal(t, "zoo", presets[2].Name)
}
