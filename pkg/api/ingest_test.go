package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhotoListResolvesPaginatedEnvelope(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"items":[{"id":3,"file_path":"/p/c.jpg","rating":2,"date_added":"2024-01-05T09:00:00Z"}],"meta":{"page":1,"page_size":50,"total_items":80,"total_pages":2}}`)

	var list PhotoList
	require.NoError(t, json.Unmarshal(payload, &list))

	assert.True(t, list.HasPagination)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 3, list.Items[0].ID)
	assert.Equal(t, 80, list.Meta.TotalItems)
	assert.Equal(t, 2, list.Meta.TotalPages)
}

func TestPhotoListResolvesFlatArray(t *testing.T) {
	t.Parallel()

	payload := []byte(`[{"id":1,"file_path":"/p/a.jpg","rating":0,"date_added":"2024-01-05T09:00:00Z"},{"id":2,"file_path":"/p/b.jpg","rating":3,"date_added":"2024-01-06T09:00:00Z"}]`)

	var list PhotoList
	require.NoError(t, json.Unmarshal(payload, &list))

	assert.False(t, list.HasPagination)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 2, list.Meta.TotalItems)
	assert.Equal(t, 1, list.Meta.TotalPages)
}

func TestPhotoListRejectsEmptyPayload(t *testing.T) {
	t.Parallel()

	var list PhotoList
	assert.Error(t, json.Unmarshal([]byte("  "), &list))
}

func TestPhotoTagConfidenceOnlyForGenerated(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"id":4,"file_path":"/p/d.jpg","rating":1,"date_added":"2024-01-07T09:00:00Z","associated_tags":[{"id":1,"name":"sunset","is_ai_generated":true,"confidence":0.92},{"id":2,"name":"family","is_ai_generated":false}]}`)

	var photo Photo
	require.NoError(t, json.Unmarshal(payload, &photo))

	require.Len(t, photo.Tags, 2)
	require.NotNil(t, photo.Tags[0].Confidence)
	assert.InDelta(t, 0.92, *photo.Tags[0].Confidence, 1e-9)
	assert.Nil(t, photo.Tags[1].Confidence)
}
