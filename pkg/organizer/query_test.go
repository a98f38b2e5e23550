package organizer

import (
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emitRecorder collects descriptors emitted by a query builder, including
// from the debounce timer goroutine.
type emitRecorder struct {
	mu    sync.Mutex
	emits []string
}

func (r *emitRecorder) record(descriptor string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emits = append(r.emits, descriptor)
}

func (r *emitRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.emits...)
}

func TestDescriptorIsDeterministic(t *testing.T) {
	t.Parallel()

	page := PageRequest{Page: 1, PageSize: 50, SortBy: SortCaptureDate, SortOrder: SortDesc}

	a := buildDescriptor(FilterCriteria{
		CameraModels: []string{"X-T4", "EOS R5"},
		TagNames:     []string{"travel", "beach"},
		RatingMin:    3,
	}, page, "")
	b := buildDescriptor(FilterCriteria{
		CameraModels: []string{"EOS R5", "X-T4"},
		TagNames:     []string{"beach", "travel"},
		RatingMin:    3,
	}, page, "")

	assert.Equal(t, a, b)
}

func TestDescriptorDateRangeExpansion(t *testing.T) {
	t.Parallel()

	descriptor := buildDescriptor(FilterCriteria{
		DateStart: "2024-01-01",
		DateEnd:   "2024-01-31",
		RatingMin: 4,
	}, PageRequest{Page: 1, PageSize: 50, SortBy: SortCaptureDate, SortOrder: SortDesc}, "")

	values, err := url.ParseQuery(descriptor)
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01T00:00:00.000Z", values.Get("date_start"))
	assert.Equal(t, "2024-01-31T23:59:59.999Z", values.Get("date_end"))
	assert.Equal(t, "4", values.Get("rating_min"))
}

func TestDescriptorDropsMalformedDates(t *testing.T) {
	t.Parallel()

	descriptor := buildDescriptor(FilterCriteria{
		DateStart: "not-a-date",
		DateEnd:   "2024-01-31",
	}, PageRequest{Page: 1, PageSize: 50, SortBy: SortCaptureDate, SortOrder: SortDesc}, "")

	values, err := url.ParseQuery(descriptor)
	require.NoError(t, err)

	assert.Empty(t, values.Get("date_start"))
	assert.Equal(t, "2024-01-31T23:59:59.999Z", values.Get("date_end"))
}

func TestDescriptorDropsInvertedDateRange(t *testing.T) {
	t.Parallel()

	descriptor := buildDescriptor(FilterCriteria{
		DateStart: "2024-02-01",
		DateEnd:   "2024-01-01",
	}, PageRequest{Page: 1, PageSize: 50, SortBy: SortCaptureDate, SortOrder: SortDesc}, "")

	values, err := url.ParseQuery(descriptor)
	require.NoError(t, err)

	assert.Empty(t, values.Get("date_start"))
	assert.Empty(t, values.Get("date_end"))
}

func TestDescriptorEmptyCriteriaMatchesEverything(t *testing.T) {
	t.Parallel()

	descriptor := buildDescriptor(FilterCriteria{}, PageRequest{Page: 1, PageSize: 50, SortBy: SortCaptureDate, SortOrder: SortDesc}, "")

	values, err := url.ParseQuery(descriptor)
	require.NoError(t, err)

	assert.Empty(t, values.Get("rating_min"))
	assert.Empty(t, values["camera_models[]"])
	assert.Empty(t, values["tag_names[]"])
	assert.Equal(t, "1", values.Get("page"))
	assert.Equal(t, "50", values.Get("page_size"))
}

func TestCriteriaChangeEmitsImmediatelyAndResetsPage(t *testing.T) {
	t.Parallel()

	recorder := &emitRecorder{}
	builder := NewQueryBuilder(50, time.Hour, recorder.record)
	defer builder.Close()

	builder.SetPage(3)
	builder.SetCriteria(FilterCriteria{RatingMin: 2})

	emits := recorder.all()
	require.Len(t, emits, 2)

	values, err := url.ParseQuery(emits[1])
	require.NoError(t, err)
	assert.Equal(t, "1", values.Get("page"))
	assert.Equal(t, "2", values.Get("rating_min"))
}

func TestTagFilterDebounceCollapsesRapidEdits(t *testing.T) {
	t.Parallel()

	recorder := &emitRecorder{}
	builder := NewQueryBuilder(50, 50*time.Millisecond, recorder.record)
	defer builder.Close()

	builder.SetTagFilter("s")
	builder.SetTagFilter("su")
	builder.SetTagFilter("sun")

	assert.Empty(t, recorder.all(), "no emit before the quiet window elapses")

	assert.Eventually(t, func() bool {
		return len(recorder.all()) == 1
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	emits := recorder.all()
	require.Len(t, emits, 1, "rapid edits collapse into exactly one fetch")

	values, err := url.ParseQuery(emits[0])
	require.NoError(t, err)
	assert.Equal(t, "sun", values.Get("tag_filter"))
	assert.Equal(t, "1", values.Get("page"))
}

func TestCloseCancelsPendingDebounce(t *testing.T) {
	t.Parallel()

	recorder := &emitRecorder{}
	builder := NewQueryBuilder(50, 20*time.Millisecond, recorder.record)

	builder.SetTagFilter("sun")
	builder.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, recorder.all())
}

func TestSortChangeResetsPage(t *testing.T) {
	t.Parallel()

	recorder := &emitRecorder{}
	builder := NewQueryBuilder(50, time.Hour, recorder.record)
	defer builder.Close()

	builder.SetPage(4)
	builder.SetSort(SortRating, SortAsc)

	emits := recorder.all()
	require.Len(t, emits, 2)

	values, err := url.ParseQuery(emits[1])
	require.NoError(t, err)
	assert.Equal(t, "1", values.Get("page"))
	assert.Equal(t, "rating", values.Get("sort_by"))
	assert.Equal(t, "asc", values.Get("sort_order"))
}
