package organizer

import "sync"

// LockKey identifies one in-flight mutation slot. The bare entity id covers
// rating mutations; tag mutations carry a sub-key so a photo can have one
// rating and one tag mutation in flight at the same time, but never two of
// the same kind.
type LockKey struct {
	EntityID int
	Sub      string
}

// RatingKey is the lock key for a rating mutation on a photo.
func RatingKey(photoID int) LockKey {
	return LockKey{EntityID: photoID}
}

// TagKey is the lock key for a tag add/remove mutation on a photo.
func TagKey(photoID int) LockKey {
	return LockKey{EntityID: photoID, Sub: "tag"}
}

// EntityLockRegistry is an advisory keyed mutual-exclusion map. There is no
// queuing: a failed Acquire means the operation is already in flight and the
// caller must suppress the action. Locks never expire; every code path that
// acquires one must release it on success and failure alike.
type EntityLockRegistry struct {
	mu   sync.Mutex
	held map[LockKey]struct{}
}

// NewEntityLockRegistry creates an empty registry.
func NewEntityLockRegistry() *EntityLockRegistry {
	return &EntityLockRegistry{
		held: make(map[LockKey]struct{}),
	}
}

// Acquire takes the lock for key. Returns false if it is already held.
func (r *EntityLockRegistry) Acquire(key LockKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.held[key]; exists {
		return false
	}
	r.held[key] = struct{}{}
	return true
}

// Release frees the lock for key. Releasing an unheld key is a no-op.
func (r *EntityLockRegistry) Release(key LockKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.held, key)
}

// Held reports whether key currently holds a lock.
func (r *EntityLockRegistry) Held(key LockKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.held[key]
	return exists
}
