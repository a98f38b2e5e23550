package organizer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const defaultPresetStorage = "data/filter_presets.json"

// FilterPreset is a named, persisted filter configuration the user can
// recall instead of rebuilding criteria by hand.
type FilterPreset struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Criteria    FilterCriteria `json:"criteria"`
	SortBy      SortKey        `json:"sortBy,omitempty"`
	SortOrder   SortDirection  `json:"sortOrder,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// FilterPresetStore manages filter presets persisted on disk.
type FilterPresetStore struct {
	mu      sync.RWMutex
	path    string
	presets map[string]FilterPreset
	byName  map[string]string
	loaded  bool
}

// NewFilterPresetStore creates a new store instance backed by the provided file path.
func NewFilterPresetStore(path string) (*FilterPresetStore, error) {
	if path == "" {
		path = defaultPresetStorage
	}

	store := &FilterPresetStore{
		path:    path,
		presets: make(map[string]FilterPreset),
		byName:  make(map[string]string),
	}

	if err := store.load(); err != nil {
		return nil, err
	}

	return store, nil
}

// Path returns the backing file path.
func (s *FilterPresetStore) Path() string {
	return s.path
}

// load loads presets from disk if present.
func (s *FilterPresetStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.loaded = true
			return nil
		}
		return err
	}

	if len(data) == 0 {
		s.loaded = true
		return nil
	}

	var presets []FilterPreset
	if err := json.Unmarshal(data, &presets); err != nil {
		return err
	}

	for _, preset := range presets {
		s.presets[preset.ID] = preset
		if preset.Name != "" {
			s.byName[strings.ToLower(preset.Name)] = preset.ID
		}
	}

	s.loaded = true
	return nil
}

// Save persists the preset, assigning an ID and timestamps as needed.
func (s *FilterPresetStore) Save(preset FilterPreset) (FilterPreset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if preset.ID == "" {
		preset.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if preset.CreatedAt.IsZero() {
		preset.CreatedAt = now
	}
	preset.UpdatedAt = now

	s.presets[preset.ID] = preset
	if preset.Name != "" {
		s.byName[strings.ToLower(preset.Name)] = preset.ID
	}

	if err := s.persistLocked(); err != nil {
		return FilterPreset{}, err
	}

	return preset, nil
}

// GetByID retrieves a preset by its ID.
func (s *FilterPresetStore) GetByID(id string) (FilterPreset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	preset, ok := s.presets[id]
	return preset, ok
}

// GetByName retrieves a preset by its name (case-insensitive).
func (s *FilterPresetStore) GetByName(name string) (FilterPreset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		return FilterPreset{}, false
	}

	id, ok := s.byName[strings.ToLower(name)]
	if !ok {
		return FilterPreset{}, false
	}

	preset, ok := s.presets[id]
	return preset, ok
}

// List returns all stored presets sorted by name.
func (s *FilterPresetStore) List() []FilterPreset {
	s.mu.RLock()
	defer s.mu.RUnlock()

	presets := make([]FilterPreset, 0, len(s.presets))
	for _, preset := range s.presets {
		presets = append(presets, preset)
	}

	sort.Slice(presets, func(i, j int) bool {
		return strings.ToLower(presets[i].Name) < strings.ToLower(presets[j].Name)
	})

	return presets
}

// persistLocked writes the current presets to disk. Caller must hold write lock.
func (s *FilterPresetStore) persistLocked() error {
	presets := make([]FilterPreset, 0, len(s.presets))
	for _, preset := range s.presets {
		presets = append(presets, preset)
	}

	sort.Slice(presets, func(i, j int) bool {
		return strings.ToLower(presets[i].Name) < strings.ToLower(presets[j].Name)
	})

	data, err := json.MarshalIndent(presets, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}

// Delete removes a preset by ID.
func (s *FilterPresetStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	preset, ok := s.presets[id]
	if !ok {
		return nil
	}

	delete(s.presets, id)
	if preset.Name != "" {
		delete(s.byName, strings.ToLower(preset.Name))
	}

	return s.persistLocked()
}
