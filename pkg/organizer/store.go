package organizer

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/photoflow/pkg/api"
)

// CollectionStore holds the last-fetched page of photos plus its pagination
// metadata. Responses are applied in completion order: every fetch takes a
// generation token from BeginFetch, and Replace rejects any response whose
// token is older than the newest one already applied, so a slow stale fetch
// can never overwrite a fresher page.
type CollectionStore struct {
	mu      sync.Mutex
	records []api.Photo
	meta    api.PageMeta
	issued  uint64
	applied uint64
}

// NewCollectionStore creates an empty store.
func NewCollectionStore() *CollectionStore {
	return &CollectionStore{}
}

// BeginFetch allocates a generation token for a fetch about to be issued.
func (s *CollectionStore) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// Replace installs a freshly fetched page, fully discarding prior contents.
// Returns false (and leaves the store untouched) when gen is stale.
func (s *CollectionStore) Replace(gen uint64, records []api.Photo, meta api.PageMeta) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen <= s.applied {
		log.Debug().
			Uint64("generation", gen).
			Uint64("applied", s.applied).
			Msg("Discarding stale fetch response")
		return false
	}

	s.applied = gen
	s.records = append([]api.Photo(nil), records...)
	s.meta = meta
	return true
}

// Patch replaces a single record in place without reordering or refetching.
// Returns false when the photo is not in the current page.
func (s *CollectionStore) Patch(photoID int, updated api.Photo) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == photoID {
			s.records[i] = updated
			return true
		}
	}
	return false
}

// Records returns a copy of the current page.
func (s *CollectionStore) Records() []api.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.Photo(nil), s.records...)
}

// Get returns the record with the given id from the current page.
func (s *CollectionStore) Get(photoID int) (api.Photo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == photoID {
			return s.records[i], true
		}
	}
	return api.Photo{}, false
}

// Meta returns the pagination metadata of the current page.
func (s *CollectionStore) Meta() api.PageMeta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// IDs returns the ids of the current page in display order.
func (s *CollectionStore) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]int, 0, len(s.records))
	for i := range s.records {
		ids = append(ids, s.records[i].ID)
	}
	return ids
}
