package organizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/photoflow/pkg/api"
)

// ErrMutationInFlight means the same kind of mutation is already running
// against the same photo; the caller must suppress the action instead of
// queuing a duplicate call.
var ErrMutationInFlight = errors.New("a mutation of this kind is already in flight for this photo")

const tagListCacheKey = "tags"

// Backend is the full API surface the controller consumes. *api.Client
// satisfies it; tests substitute fakes.
type Backend interface {
	ListPhotos(ctx context.Context, rawQuery string) (*api.PhotoList, error)
	RatePhoto(ctx context.Context, photoID, rating int) (*api.Photo, error)
	AddTag(ctx context.Context, photoID int, tagName string) (*api.Photo, error)
	RemoveTag(ctx context.Context, photoID, tagID int) (*api.Photo, error)
	ListTags(ctx context.Context) ([]api.Tag, error)

	BulkBackend
	ExportBackend
	DownloadExport(ctx context.Context, jobID string) (io.ReadCloser, error)

	ListAlbums(ctx context.Context, page, pageSize int) (*api.AlbumPage, error)
	CreateAlbum(ctx context.Context, params api.CreateAlbumParams) (*api.Album, error)
	UpdateAlbum(ctx context.Context, albumID int, name, description string) (*api.Album, error)
	DeleteAlbum(ctx context.Context, albumID int) error
	AddAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*api.Album, error)
	RemoveAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*api.Album, error)
}

// Options configures a Controller.
type Options struct {
	PageSize       int
	DebounceWindow time.Duration
	PollInterval   time.Duration
	DisplayWindow  time.Duration
	BulkMaxIDs     int
	CacheTTL       time.Duration
	Download       Downloader // export download side-effect; may be nil
}

// Controller wires the orchestration pieces together: query changes drive
// fetches into the collection store, single-entity mutations run under the
// lock registry and patch the store in place, bulk operations go through the
// dispatcher, and exports through the orchestrator.
type Controller struct {
	backend   Backend
	store     *CollectionStore
	selection *SelectionSet
	locks     *EntityLockRegistry
	query     *QueryBuilder
	bulk      *BulkOperationDispatcher
	export    *ExportOrchestrator
	tagCache  *cache.Cache
	pageCache *cache.Cache
}

// NewController creates a controller over the given backend.
func NewController(backend Backend, opts Options) *Controller {
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = 500 * time.Millisecond
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.DisplayWindow <= 0 {
		opts.DisplayWindow = 3 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	c := &Controller{
		backend:   backend,
		store:     NewCollectionStore(),
		selection: NewSelectionSet(),
		locks:     NewEntityLockRegistry(),
		bulk:      NewBulkOperationDispatcher(backend, opts.BulkMaxIDs),
		export:    NewExportOrchestrator(backend, opts.Download, opts.PollInterval, opts.DisplayWindow),
		tagCache:  cache.New(opts.CacheTTL, opts.CacheTTL*2),
		pageCache: cache.New(30*time.Second, time.Minute),
	}

	c.query = NewQueryBuilder(opts.PageSize, opts.DebounceWindow, func(descriptor string) {
		go func() {
			if err := c.refresh(context.Background(), descriptor, true); err != nil {
				log.Error().Err(err).Msg("Photo fetch failed")
			}
		}()
	})

	return c
}

// Store exposes the collection store.
func (c *Controller) Store() *CollectionStore { return c.store }

// Selection exposes the current working set.
func (c *Controller) Selection() *SelectionSet { return c.selection }

// Query exposes the query builder.
func (c *Controller) Query() *QueryBuilder { return c.query }

// Export exposes the export orchestrator.
func (c *Controller) Export() *ExportOrchestrator { return c.export }

// Locks exposes the entity lock registry.
func (c *Controller) Locks() *EntityLockRegistry { return c.locks }

// Close tears down the debounce timer and the export orchestrator.
func (c *Controller) Close() {
	c.query.Close()
	c.export.Close()
}

// RefreshPhotos fetches the current page synchronously. The selection is
// preserved: an explicit refresh is an in-place reload, not a view change.
func (c *Controller) RefreshPhotos(ctx context.Context) error {
	return c.refresh(ctx, c.query.Descriptor(), false)
}

// refresh issues one fetch for descriptor and applies the response under the
// store's generation ordering. clearSelection marks refetches triggered by
// filter/sort/page changes: those invalidate the working set, while in-place
// reloads after mutations keep it.
func (c *Controller) refresh(ctx context.Context, descriptor string, clearSelection bool) error {
	gen := c.store.BeginFetch()

	var list *api.PhotoList
	if cached, ok := c.pageCache.Get(descriptor); ok {
		list = cached.(*api.PhotoList)
	} else {
		fetched, err := c.backend.ListPhotos(ctx, descriptor)
		if err != nil {
			return fmt.Errorf("list photos: %w", err)
		}
		c.pageCache.Set(descriptor, fetched, cache.DefaultExpiration)
		list = fetched
	}

	if applied := c.store.Replace(gen, list.Items, list.Meta); applied && clearSelection {
		c.selection.Clear()
	}
	return nil
}

// SelectPage adds every photo on the current page to the selection.
func (c *Controller) SelectPage() {
	c.selection.SelectAll(c.store.IDs())
}

// RatePhoto sets the rating of one photo. Concurrent rating mutations on the
// same photo are rejected with ErrMutationInFlight; the lock is released on
// every path. On success the store is patched in place, no refetch.
func (c *Controller) RatePhoto(ctx context.Context, photoID, rating int) error {
	if rating < 0 || rating > 5 {
		return ErrInvalidRating
	}

	key := RatingKey(photoID)
	if !c.locks.Acquire(key) {
		return ErrMutationInFlight
	}
	defer c.locks.Release(key)

	photo, err := c.backend.RatePhoto(ctx, photoID, rating)
	if err != nil {
		return fmt.Errorf("rate photo %d: %w", photoID, err)
	}

	c.store.Patch(photoID, *photo)
	c.pageCache.Flush()
	return nil
}

// AddTagToPhoto attaches a tag to one photo and patches the store in place.
// The global tag list is refreshed lazily afterwards; its failure is logged
// and never rolls anything back.
func (c *Controller) AddTagToPhoto(ctx context.Context, photoID int, tagName string) error {
	key := TagKey(photoID)
	if !c.locks.Acquire(key) {
		return ErrMutationInFlight
	}
	defer c.locks.Release(key)

	photo, err := c.backend.AddTag(ctx, photoID, tagName)
	if err != nil {
		return fmt.Errorf("add tag to photo %d: %w", photoID, err)
	}

	c.store.Patch(photoID, *photo)
	c.pageCache.Flush()
	c.refreshTagsAsync()
	return nil
}

// RemoveTagFromPhoto detaches a tag from one photo and patches the store.
func (c *Controller) RemoveTagFromPhoto(ctx context.Context, photoID, tagID int) error {
	key := TagKey(photoID)
	if !c.locks.Acquire(key) {
		return ErrMutationInFlight
	}
	defer c.locks.Release(key)

	photo, err := c.backend.RemoveTag(ctx, photoID, tagID)
	if err != nil {
		return fmt.Errorf("remove tag from photo %d: %w", photoID, err)
	}

	c.store.Patch(photoID, *photo)
	c.pageCache.Flush()
	c.refreshTagsAsync()
	return nil
}

// TagNames returns the global tag list, cached between calls.
func (c *Controller) TagNames(ctx context.Context) ([]api.Tag, error) {
	if cached, ok := c.tagCache.Get(tagListCacheKey); ok {
		return cached.([]api.Tag), nil
	}

	tags, err := c.backend.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	c.tagCache.Set(tagListCacheKey, tags, cache.DefaultExpiration)
	return tags, nil
}

// RefreshTagList repopulates the tag cache from the backend.
func (c *Controller) RefreshTagList(ctx context.Context) error {
	tags, err := c.backend.ListTags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	c.tagCache.Set(tagListCacheKey, tags, cache.DefaultExpiration)
	return nil
}

// refreshTagsAsync refreshes the tag cache in the background, best effort.
func (c *Controller) refreshTagsAsync() {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.RefreshTagList(ctx); err != nil {
			log.Debug().Err(err).Msg("Best-effort tag list refresh failed")
		}
	}()
}

// BulkDeleteSelected deletes the selected photos. confirmed must be supplied
// by the caller; it is never inferred.
func (c *Controller) BulkDeleteSelected(ctx context.Context, confirmed bool) (*BulkResult, error) {
	return c.dispatchBulk(ctx, BulkRequest{Kind: BulkDelete, Confirmed: confirmed})
}

// BulkRateSelected sets the same rating on the selected photos.
func (c *Controller) BulkRateSelected(ctx context.Context, rating int) (*BulkResult, error) {
	return c.dispatchBulk(ctx, BulkRequest{Kind: BulkRate, Rating: rating})
}

// BulkTagSelected adds tags to the selected photos.
func (c *Controller) BulkTagSelected(ctx context.Context, tagNames []string) (*BulkResult, error) {
	return c.dispatchBulk(ctx, BulkRequest{Kind: BulkTag, TagNames: tagNames})
}

func (c *Controller) dispatchBulk(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	result, err := c.bulk.Dispatch(ctx, c.selection, req)
	if err != nil {
		return nil, err
	}

	c.pageCache.Flush()
	if req.Kind == BulkTag {
		c.refreshTagsAsync()
	}
	if err := c.refresh(ctx, c.query.Descriptor(), false); err != nil {
		log.Warn().Err(err).Msg("Collection refresh after bulk operation failed")
	}
	return result, nil
}

// Album operations, consumed request/apply style like the bulk endpoints.

func (c *Controller) ListAlbums(ctx context.Context, page, pageSize int) (*api.AlbumPage, error) {
	return c.backend.ListAlbums(ctx, page, pageSize)
}

func (c *Controller) CreateAlbum(ctx context.Context, params api.CreateAlbumParams) (*api.Album, error) {
	return c.backend.CreateAlbum(ctx, params)
}

func (c *Controller) UpdateAlbum(ctx context.Context, albumID int, name, description string) (*api.Album, error) {
	return c.backend.UpdateAlbum(ctx, albumID, name, description)
}

func (c *Controller) DeleteAlbum(ctx context.Context, albumID int) error {
	return c.backend.DeleteAlbum(ctx, albumID)
}

// AddSelectedToAlbum adds the current selection to an album. Album additions
// are additive, so the selection always survives for further use.
func (c *Controller) AddSelectedToAlbum(ctx context.Context, albumID int) (*api.Album, error) {
	ids := c.selection.IDs()
	if len(ids) == 0 {
		return nil, ErrSelectionEmpty
	}
	return c.backend.AddAlbumPhotos(ctx, albumID, ids)
}

func (c *Controller) RemoveAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*api.Album, error) {
	return c.backend.RemoveAlbumPhotos(ctx, albumID, imageIDs)
}
