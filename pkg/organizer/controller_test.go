package organizer

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/photoflow/pkg/api"
)

// fakeBackend implements Backend for controller tests.
type fakeBackend struct {
	mu          sync.Mutex
	photos      []api.Photo
	listCalls   int
	rateCalls   int
	rateErr     error
	rateEntered chan struct{} // closed when a rate call starts, if set
	rateRelease chan struct{} // blocks the rate call until closed, if set
	tags        []api.Tag
	tagsCalls   int
	tagResp     *api.BulkTagResponse
	deleteResp  *api.BulkDeleteResponse
	rateResp    *api.BulkRateResponse
}

func (f *fakeBackend) ListPhotos(ctx context.Context, rawQuery string) (*api.PhotoList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	items := append([]api.Photo(nil), f.photos...)
	return &api.PhotoList{
		Items:         items,
		Meta:          api.PageMeta{Page: 1, PageSize: 50, TotalItems: len(items), TotalPages: 1},
		HasPagination: true,
	}, nil
}

func (f *fakeBackend) RatePhoto(ctx context.Context, photoID, rating int) (*api.Photo, error) {
	f.mu.Lock()
	f.rateCalls++
	entered := f.rateEntered
	release := f.rateRelease
	err := f.rateErr
	f.mu.Unlock()

	if entered != nil {
		close(entered)
		f.mu.Lock()
		f.rateEntered = nil
		f.mu.Unlock()
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return nil, err
	}
	return &api.Photo{ID: photoID, FilePath: "/p/x.jpg", Rating: rating}, nil
}

func (f *fakeBackend) AddTag(ctx context.Context, photoID int, tagName string) (*api.Photo, error) {
	return &api.Photo{
		ID:       photoID,
		FilePath: "/p/x.jpg",
		Tags:     []api.TagInfo{{ID: 1, Name: tagName}},
	}, nil
}

func (f *fakeBackend) RemoveTag(ctx context.Context, photoID, tagID int) (*api.Photo, error) {
	return &api.Photo{ID: photoID, FilePath: "/p/x.jpg"}, nil
}

func (f *fakeBackend) ListTags(ctx context.Context) ([]api.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tagsCalls++
	return append([]api.Tag(nil), f.tags...), nil
}

func (f *fakeBackend) BulkDelete(ctx context.Context, imageIDs []int) (*api.BulkDeleteResponse, error) {
	return f.deleteResp, nil
}

func (f *fakeBackend) BulkRate(ctx context.Context, imageIDs []int, rating int) (*api.BulkRateResponse, error) {
	return f.rateResp, nil
}

func (f *fakeBackend) BulkTag(ctx context.Context, imageIDs []int, tagNames []string) (*api.BulkTagResponse, error) {
	return f.tagResp, nil
}

func (f *fakeBackend) SubmitExport(ctx context.Context, req api.ExportRequest) (*api.ExportSubmitResponse, error) {
	return &api.ExportSubmitResponse{JobID: "job-1"}, nil
}

func (f *fakeBackend) GetExportJob(ctx context.Context, jobID string) (*api.ExportJob, error) {
	return &api.ExportJob{JobID: jobID, Status: api.ExportStatusProcessing}, nil
}

func (f *fakeBackend) DownloadExport(ctx context.Context, jobID string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("zip")), nil
}

func (f *fakeBackend) ListAlbums(ctx context.Context, page, pageSize int) (*api.AlbumPage, error) {
	return &api.AlbumPage{}, nil
}

func (f *fakeBackend) CreateAlbum(ctx context.Context, params api.CreateAlbumParams) (*api.Album, error) {
	return &api.Album{ID: 1, Name: params.Name}, nil
}

func (f *fakeBackend) UpdateAlbum(ctx context.Context, albumID int, name, description string) (*api.Album, error) {
	return &api.Album{ID: albumID, Name: name}, nil
}

func (f *fakeBackend) DeleteAlbum(ctx context.Context, albumID int) error { return nil }

func (f *fakeBackend) AddAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*api.Album, error) {
	return &api.Album{ID: albumID, PhotoCount: len(imageIDs)}, nil
}

func (f *fakeBackend) RemoveAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*api.Album, error) {
	return &api.Album{ID: albumID}, nil
}

func (f *fakeBackend) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func (f *fakeBackend) rateCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rateCalls
}

func (f *fakeBackend) tagsCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tagsCalls
}

func newTestController(backend Backend) *Controller {
	return NewController(backend, Options{
		PageSize:       50,
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
		DisplayWindow:  50 * time.Millisecond,
		BulkMaxIDs:     100,
	})
}

func seededBackend() *fakeBackend {
	return &fakeBackend{
		photos: []api.Photo{
			{ID: 1, FilePath: "/p/a.jpg", Rating: 2},
			{ID: 2, FilePath: "/p/b.jpg", Rating: 0},
			{ID: 3, FilePath: "/p/c.jpg", Rating: 5},
		},
	}
}

func TestRefreshPreservesSelection(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	ctrl.SelectPage()
	require.Equal(t, 3, ctrl.Selection().Len())

	// An explicit in-place reload keeps the working set.
	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	assert.Equal(t, 3, ctrl.Selection().Len())
}

func TestQueryChangeClearsSelection(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	ctrl.SelectPage()
	require.Equal(t, 3, ctrl.Selection().Len())

	ctrl.Query().SetCriteria(FilterCriteria{RatingMin: 4})

	assert.Eventually(t, func() bool {
		return ctrl.Selection().Len() == 0
	}, time.Second, 10*time.Millisecond, "a filter-triggered refetch clears the selection")
}

func TestRatePhotoPatchesStoreInPlace(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	ctrl.Selection().Add(2)
	listCallsBefore := backend.listCallCount()

	require.NoError(t, ctrl.RatePhoto(context.Background(), 2, 4))

	record, ok := ctrl.Store().Get(2)
	require.True(t, ok)
	assert.Equal(t, 4, record.Rating)
	assert.Equal(t, listCallsBefore, backend.listCallCount(), "patch avoids a refetch round trip")
	assert.Equal(t, 1, ctrl.Selection().Len(), "selection survives in-place patches")
	assert.False(t, ctrl.Locks().Held(RatingKey(2)), "lock released after success")
}

func TestConcurrentSameKindMutationIsSuppressed(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	backend.rateEntered = make(chan struct{})
	backend.rateRelease = make(chan struct{})
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))

	entered := backend.rateEntered
	release := backend.rateRelease
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- ctrl.RatePhoto(context.Background(), 1, 5)
	}()

	<-entered

	// Second same-kind mutation on the same photo while the first is in
	// flight: rejected locally, no second remote call.
	err := ctrl.RatePhoto(context.Background(), 1, 3)
	assert.ErrorIs(t, err, ErrMutationInFlight)
	assert.Equal(t, 1, backend.rateCallCount())

	// A tag mutation on the same photo is a different kind and proceeds.
	require.NoError(t, ctrl.AddTagToPhoto(context.Background(), 1, "travel"))

	close(release)
	require.NoError(t, <-firstDone)

	// After completion the rating slot is free again.
	require.NoError(t, ctrl.RatePhoto(context.Background(), 1, 3))
}

func TestFailedMutationReleasesLockAndLeavesStore(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	backend.rateErr = errors.New("server exploded")
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))

	err := ctrl.RatePhoto(context.Background(), 1, 5)
	require.Error(t, err)

	record, ok := ctrl.Store().Get(1)
	require.True(t, ok)
	assert.Equal(t, 2, record.Rating, "store unchanged on remote failure")
	assert.False(t, ctrl.Locks().Held(RatingKey(1)), "lock released on failure path")
}

func TestTagNamesAreCached(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	backend.tags = []api.Tag{{ID: 1, Name: "sunset"}}
	ctrl := newTestController(backend)
	defer ctrl.Close()

	_, err := ctrl.TagNames(context.Background())
	require.NoError(t, err)
	_, err = ctrl.TagNames(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, backend.tagsCallCount())
}

func TestTagMutationRefreshesTagListBestEffort(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	require.NoError(t, ctrl.AddTagToPhoto(context.Background(), 1, "travel"))

	assert.Eventually(t, func() bool {
		return backend.tagsCallCount() >= 1
	}, time.Second, 10*time.Millisecond)
}

func TestBulkTagThroughControllerKeepsSelectionOnPartialFailure(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	backend.tagResp = &api.BulkTagResponse{SuccessCount: 2, FailedCount: 1, TagsAdded: 2}
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	ctrl.SelectPage()

	result, err := ctrl.BulkTagSelected(context.Background(), []string{"travel"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Equal(t, 3, ctrl.Selection().Len(), "selection survives the post-bulk refresh")
}

func TestBulkDeleteThroughControllerRefreshesCollection(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	backend.deleteResp = &api.BulkDeleteResponse{DeletedCount: 3}
	ctrl := newTestController(backend)
	defer ctrl.Close()

	require.NoError(t, ctrl.RefreshPhotos(context.Background()))
	ctrl.SelectPage()
	listCallsBefore := backend.listCallCount()

	result, err := ctrl.BulkDeleteSelected(context.Background(), true)
	require.NoError(t, err)

	assert.True(t, result.SelectionCleared)
	assert.Equal(t, 0, ctrl.Selection().Len())
	assert.Greater(t, backend.listCallCount(), listCallsBefore, "bulk operations refetch the collection")
}

func TestAddSelectedToAlbumRequiresSelection(t *testing.T) {
	t.Parallel()

	backend := seededBackend()
	ctrl := newTestController(backend)
	defer ctrl.Close()

	_, err := ctrl.AddSelectedToAlbum(context.Background(), 1)
	assert.ErrorIs(t, err, ErrSelectionEmpty)
}
