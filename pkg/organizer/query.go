package organizer

import (
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// SortKey identifies a server-side sort column.
type SortKey string

const (
	SortCaptureDate SortKey = "capture_date"
	SortDateAdded   SortKey = "date_added"
	SortFilename    SortKey = "original_filename"
	SortCameraModel SortKey = "camera_model"
	SortRating      SortKey = "rating"
)

// SortDirection is the sort order.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// FilterCriteria narrows the photo listing. All fields are independently
// optional; the zero value matches everything. Camera models combine with OR,
// tag names with AND, RatingMin of 0 means no rating constraint.
type FilterCriteria struct {
	DateStart    string   `json:"date_start,omitempty"` // YYYY-MM-DD
	DateEnd      string   `json:"date_end,omitempty"`   // YYYY-MM-DD
	CameraModels []string `json:"camera_models,omitempty"`
	TagNames     []string `json:"tag_names,omitempty"`
	RatingMin    int      `json:"rating_min,omitempty"`
}

// PageRequest selects one page of results.
type PageRequest struct {
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
	SortBy    SortKey       `json:"sort_by"`
	SortOrder SortDirection `json:"sort_order"`
}

const inputDateLayout = "2006-01-02"

// buildDescriptor renders criteria and page state into a canonical encoded
// query string. url.Values.Encode sorts by key and multi-valued keys are
// pre-sorted here, so identical criteria always produce byte-identical
// strings regardless of the order the caller assembled them in. Malformed
// dates are dropped from the descriptor, never sent.
func buildDescriptor(criteria FilterCriteria, page PageRequest, tagFilter string) string {
	values := url.Values{}

	dateStart, startOK := parseInputDate(criteria.DateStart)
	dateEnd, endOK := parseInputDate(criteria.DateEnd)
	if startOK && endOK && dateStart.After(dateEnd) {
		log.Warn().
			Str("date_start", criteria.DateStart).
			Str("date_end", criteria.DateEnd).
			Msg("Date range is inverted, dropping both bounds")
		startOK, endOK = false, false
	}
	if startOK {
		values.Set("date_start", dateStart.UTC().Format("2006-01-02T15:04:05.000Z"))
	}
	if endOK {
		endOfDay := dateEnd.Add(24*time.Hour - time.Millisecond)
		values.Set("date_end", endOfDay.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	models := append([]string(nil), criteria.CameraModels...)
	sort.Strings(models)
	for _, m := range models {
		if m != "" {
			values.Add("camera_models[]", m)
		}
	}

	tags := append([]string(nil), criteria.TagNames...)
	sort.Strings(tags)
	for _, t := range tags {
		if t != "" {
			values.Add("tag_names[]", t)
		}
	}

	if criteria.RatingMin > 0 {
		values.Set("rating_min", fmt.Sprintf("%d", criteria.RatingMin))
	}

	if tagFilter != "" {
		values.Set("tag_filter", tagFilter)
	}

	values.Set("page", fmt.Sprintf("%d", page.Page))
	values.Set("page_size", fmt.Sprintf("%d", page.PageSize))
	values.Set("sort_by", string(page.SortBy))
	values.Set("sort_order", string(page.SortOrder))

	return values.Encode()
}

func parseInputDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.ParseInLocation(inputDateLayout, raw, time.UTC)
	if err != nil {
		log.Warn().Str("date", raw).Msg("Malformed filter date dropped")
		return time.Time{}, false
	}
	return parsed, true
}

// QueryBuilder tracks the current filter, sort, and page state and emits a
// canonical request descriptor whenever a fetch should happen. Free-text tag
// filter edits are debounced: an emit fires only after the input has been
// quiet for the configured window, using the final value. All other changes
// emit immediately and reset the page index to 1.
type QueryBuilder struct {
	mu        sync.Mutex
	criteria  FilterCriteria
	page      PageRequest
	tagFilter string
	debounce  time.Duration
	timer     *time.Timer
	emit      func(descriptor string)
	closed    bool
}

// NewQueryBuilder creates a query builder. emit may be nil for descriptor-only
// use; pageSize must be positive.
func NewQueryBuilder(pageSize int, debounce time.Duration, emit func(descriptor string)) *QueryBuilder {
	return &QueryBuilder{
		page: PageRequest{
			Page:      1,
			PageSize:  pageSize,
			SortBy:    SortCaptureDate,
			SortOrder: SortDesc,
		},
		debounce: debounce,
		emit:     emit,
	}
}

// Descriptor returns the canonical query string for the current state.
func (b *QueryBuilder) Descriptor() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return buildDescriptor(b.criteria, b.page, b.tagFilter)
}

// Page returns the current page request.
func (b *QueryBuilder) Page() PageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.page
}

// Criteria returns a copy of the current filter criteria.
func (b *QueryBuilder) Criteria() FilterCriteria {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.criteria
}

// SetCriteria replaces the filter criteria, resets to page 1, and emits.
func (b *QueryBuilder) SetCriteria(criteria FilterCriteria) {
	b.mu.Lock()
	b.criteria = criteria
	b.page.Page = 1
	descriptor := b.emitLocked()
	b.mu.Unlock()
	b.fire(descriptor)
}

// SetSort changes the sort column and direction, resets to page 1, and emits.
func (b *QueryBuilder) SetSort(key SortKey, direction SortDirection) {
	b.mu.Lock()
	b.page.SortBy = key
	b.page.SortOrder = direction
	b.page.Page = 1
	descriptor := b.emitLocked()
	b.mu.Unlock()
	b.fire(descriptor)
}

// SetPage moves to another page and emits. The page index is clamped to 1.
func (b *QueryBuilder) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	b.mu.Lock()
	b.page.Page = page
	descriptor := b.emitLocked()
	b.mu.Unlock()
	b.fire(descriptor)
}

// SetTagFilter updates the free-text tag filter. The emit is deferred until
// the input has been quiet for the debounce window; rapid successive edits
// collapse into a single emit carrying the final value.
func (b *QueryBuilder) SetTagFilter(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.tagFilter = text
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.debounce, func() {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return
		}
		b.page.Page = 1
		descriptor := b.emitLocked()
		b.mu.Unlock()
		b.fire(descriptor)
	})
}

// Close stops any pending debounce timer. No emit fires after Close returns.
func (b *QueryBuilder) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *QueryBuilder) emitLocked() string {
	if b.closed {
		return ""
	}
	return buildDescriptor(b.criteria, b.page, b.tagFilter)
}

func (b *QueryBuilder) fire(descriptor string) {
	if descriptor == "" || b.emit == nil {
		return
	}
	b.emit(descriptor)
}
