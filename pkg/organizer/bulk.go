package organizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/photoflow/pkg/api"
)

// BulkKind identifies a bulk operation.
type BulkKind string

const (
	BulkDelete BulkKind = "delete"
	BulkRate   BulkKind = "rate"
	BulkTag    BulkKind = "tag"
)

// Local validation failures, rejected before any remote call is issued.
var (
	ErrSelectionEmpty       = errors.New("selection is empty")
	ErrBulkTooLarge         = errors.New("selection exceeds the bulk size limit")
	ErrConfirmationRequired = errors.New("bulk delete requires confirmation")
	ErrInvalidRating        = errors.New("rating must be between 0 and 5")
	ErrNoTagNames           = errors.New("bulk tag requires at least one tag name")
)

// BulkRequest carries the kind-specific payload of a bulk operation.
// Confirmed is a required side-channel input for deletes: the dispatcher
// never infers it.
type BulkRequest struct {
	Kind      BulkKind
	Rating    int
	TagNames  []string
	Confirmed bool
}

// BulkResult aggregates the outcome of one bulk call.
type BulkResult struct {
	Kind             BulkKind
	SuccessCount     int
	FailureCount     int
	FailedIDs        []int
	Errors           []string
	TagsAdded        int
	SelectionCleared bool
}

// Message renders the aggregate outcome as a single scoped summary.
func (r *BulkResult) Message() string {
	if r.FailureCount == 0 {
		return fmt.Sprintf("bulk %s: %d succeeded", r.Kind, r.SuccessCount)
	}
	return fmt.Sprintf("bulk %s: %d succeeded, %d failed", r.Kind, r.SuccessCount, r.FailureCount)
}

// BulkBackend is the slice of the API client the dispatcher needs.
type BulkBackend interface {
	BulkDelete(ctx context.Context, imageIDs []int) (*api.BulkDeleteResponse, error)
	BulkRate(ctx context.Context, imageIDs []int, rating int) (*api.BulkRateResponse, error)
	BulkTag(ctx context.Context, imageIDs []int, tagNames []string) (*api.BulkTagResponse, error)
}

// BulkOperationDispatcher issues delete/rate/tag operations over a selection
// as exactly one remote call each, never decomposed into a sequence. Partial
// failures are reported as aggregate counts and never rolled back.
type BulkOperationDispatcher struct {
	backend  BulkBackend
	maxBatch int
}

// NewBulkOperationDispatcher creates a dispatcher with the given batch bound.
func NewBulkOperationDispatcher(backend BulkBackend, maxBatch int) *BulkOperationDispatcher {
	if maxBatch <= 0 {
		maxBatch = 100
	}
	return &BulkOperationDispatcher{
		backend:  backend,
		maxBatch: maxBatch,
	}
}

// Dispatch validates the request locally, issues the single remote call, and
// applies the selection-clearing rules: the selection is cleared only when
// every targeted id succeeded. Tag partial failures keep the selection intact
// so the user can retry; tag successes are additive and safe either way.
func (d *BulkOperationDispatcher) Dispatch(ctx context.Context, selection *SelectionSet, req BulkRequest) (*BulkResult, error) {
	ids := selection.IDs()

	if len(ids) == 0 {
		return nil, ErrSelectionEmpty
	}
	if len(ids) > d.maxBatch {
		return nil, fmt.Errorf("%w: %d ids, limit %d", ErrBulkTooLarge, len(ids), d.maxBatch)
	}

	switch req.Kind {
	case BulkDelete:
		if !req.Confirmed {
			return nil, ErrConfirmationRequired
		}
	case BulkRate:
		if req.Rating < 0 || req.Rating > 5 {
			return nil, ErrInvalidRating
		}
	case BulkTag:
		if len(req.TagNames) == 0 {
			return nil, ErrNoTagNames
		}
	default:
		return nil, fmt.Errorf("unknown bulk operation kind: %q", req.Kind)
	}

	result := &BulkResult{Kind: req.Kind}

	switch req.Kind {
	case BulkDelete:
		resp, err := d.backend.BulkDelete(ctx, ids)
		if err != nil {
			return nil, err
		}
		result.SuccessCount = resp.DeletedCount
		result.FailureCount = resp.FailedCount
		result.FailedIDs = resp.FailedIDs
		result.Errors = resp.Errors
	case BulkRate:
		resp, err := d.backend.BulkRate(ctx, ids, req.Rating)
		if err != nil {
			return nil, err
		}
		result.SuccessCount = resp.UpdatedCount
		result.FailureCount = resp.FailedCount
	case BulkTag:
		resp, err := d.backend.BulkTag(ctx, ids, req.TagNames)
		if err != nil {
			return nil, err
		}
		result.SuccessCount = resp.SuccessCount
		result.FailureCount = resp.FailedCount
		result.TagsAdded = resp.TagsAdded
	}

	if result.FailureCount == 0 {
		selection.Clear()
		result.SelectionCleared = true
	}

	log.Info().
		Str("kind", string(req.Kind)).
		Int("targets", len(ids)).
		Int("succeeded", result.SuccessCount).
		Int("failed", result.FailureCount).
		Bool("selection_cleared", result.SelectionCleared).
		Msg("Bulk operation completed")

	return result, nil
}
