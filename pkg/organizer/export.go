package organizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yourusername/photoflow/pkg/api"
)

// ExportState is a local state of the export orchestrator.
type ExportState string

const (
	ExportIdle       ExportState = "idle"
	ExportSubmitting ExportState = "submitting"
	ExportPolling    ExportState = "polling"
	ExportCompleted  ExportState = "completed"
	ExportFailed     ExportState = "failed"
)

var (
	// ErrExportBusy means a job is already tracked; a new submit while
	// polling is rejected locally.
	ErrExportBusy = errors.New("an export job is already in progress")
	// ErrExportScope means the request did not name exactly one of an id
	// set or an album.
	ErrExportScope = errors.New("export requires either image ids or an album id, not both")
	// ErrExportClosed means the orchestrator was torn down.
	ErrExportClosed = errors.New("export orchestrator is closed")
)

// ExportBackend is the slice of the API client the orchestrator needs.
type ExportBackend interface {
	SubmitExport(ctx context.Context, req api.ExportRequest) (*api.ExportSubmitResponse, error)
	GetExportJob(ctx context.Context, jobID string) (*api.ExportJob, error)
}

// Downloader is the download side-effect fired exactly once when a job
// completes.
type Downloader func(ctx context.Context, jobID string) error

// ExportOrchestrator drives one export job at a time through
// Idle -> Submitting -> Polling -> Completed/Failed -> Idle. Polling runs on
// a fixed-interval ticker owned by the orchestrator; each poll response
// replaces the previous progress snapshot wholesale since the server is
// authoritative. After Close, no poll request is issued and no download or
// state change happens.
type ExportOrchestrator struct {
	backend       ExportBackend
	download      Downloader
	pollInterval  time.Duration
	displayWindow time.Duration

	mu         sync.Mutex
	state      ExportState
	jobID      string
	snapshot   *api.ExportJob
	failure    string
	downloaded bool
	stop       chan struct{}
	cancelPoll context.CancelFunc
	idleTimer  *time.Timer
	closed     bool
}

// NewExportOrchestrator creates an idle orchestrator. displayWindow is how
// long a terminal state stays visible before the automatic return to idle;
// zero disables the automatic transition and leaves it to Dismiss.
func NewExportOrchestrator(backend ExportBackend, download Downloader, pollInterval, displayWindow time.Duration) *ExportOrchestrator {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &ExportOrchestrator{
		backend:       backend,
		download:      download,
		pollInterval:  pollInterval,
		displayWindow: displayWindow,
		state:         ExportIdle,
	}
}

// Submit issues exactly one submit call and starts polling on success. The
// submit is never retried here: it is a creation call, and a retry without
// server-side deduplication could spawn a second job.
func (o *ExportOrchestrator) Submit(ctx context.Context, req api.ExportRequest) error {
	hasIDs := len(req.ImageIDs) > 0
	hasAlbum := req.AlbumID != nil
	if hasIDs == hasAlbum {
		return ErrExportScope
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrExportClosed
	}
	if o.state != ExportIdle {
		o.mu.Unlock()
		return ErrExportBusy
	}
	o.state = ExportSubmitting
	o.failure = ""
	o.snapshot = nil
	o.downloaded = false
	o.mu.Unlock()

	resp, err := o.backend.SubmitExport(ctx, req)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrExportClosed
	}
	if err != nil {
		// No job identifier is retained on a failed submit.
		o.state = ExportIdle
		o.failure = err.Error()
		log.Error().Err(err).Msg("Export submit failed")
		return err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	o.jobID = resp.JobID
	o.state = ExportPolling
	o.stop = make(chan struct{})
	o.cancelPoll = cancel

	log.Info().Str("job_id", resp.JobID).Msg("Export job submitted, polling for status")

	go o.pollLoop(pollCtx, o.stop, resp.JobID)

	return nil
}

func (o *ExportOrchestrator) pollLoop(ctx context.Context, stop chan struct{}, jobID string) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := o.pollOnce(ctx, jobID); done {
				return
			}
		}
	}
}

// pollOnce fetches the job status once. Returns true when polling must stop,
// either because a terminal status was reached or the orchestrator was torn
// down.
func (o *ExportOrchestrator) pollOnce(ctx context.Context, jobID string) bool {
	o.mu.Lock()
	if o.closed || o.state != ExportPolling || o.jobID != jobID {
		o.mu.Unlock()
		return true
	}
	o.mu.Unlock()

	job, err := o.backend.GetExportJob(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		// Transient poll failure: keep the previous snapshot and retry on
		// the next tick.
		log.Warn().Err(err).Str("job_id", jobID).Msg("Export status poll failed")
		return false
	}

	o.mu.Lock()
	if o.closed || o.state != ExportPolling || o.jobID != jobID {
		o.mu.Unlock()
		return true
	}

	o.snapshot = job

	switch job.Status {
	case api.ExportStatusCompleted:
		o.state = ExportCompleted
		shouldDownload := !o.downloaded && o.download != nil
		o.downloaded = true
		o.scheduleIdleLocked()
		o.mu.Unlock()

		log.Info().
			Str("job_id", jobID).
			Int("processed", job.ProcessedImages).
			Int("total", job.TotalImages).
			Msg("Export completed")

		if shouldDownload {
			if err := o.download(ctx, jobID); err != nil {
				log.Error().Err(err).Str("job_id", jobID).Msg("Export download failed")
				o.mu.Lock()
				o.failure = "download failed: " + err.Error()
				o.mu.Unlock()
			}
		}
		return true

	case api.ExportStatusFailed:
		o.state = ExportFailed
		o.failure = job.ErrorMessage
		o.scheduleIdleLocked()
		o.mu.Unlock()

		log.Error().
			Str("job_id", jobID).
			Str("reason", job.ErrorMessage).
			Msg("Export failed")
		return true

	default:
		o.mu.Unlock()
		return false
	}
}

// scheduleIdleLocked arms the post-terminal display timer. Caller holds mu.
func (o *ExportOrchestrator) scheduleIdleLocked() {
	if o.displayWindow <= 0 {
		return
	}
	o.idleTimer = time.AfterFunc(o.displayWindow, o.Dismiss)
}

// Dismiss returns a terminal orchestrator to idle immediately.
func (o *ExportOrchestrator) Dismiss() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != ExportCompleted && o.state != ExportFailed {
		return
	}
	o.resetLocked()
}

// Close tears the orchestrator down: the poll loop stops issuing requests,
// any in-flight poll is cancelled, and no download or state change happens
// afterwards. Close is idempotent.
func (o *ExportOrchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	o.resetLocked()
}

// resetLocked clears the tracked job and stops timers. Caller holds mu.
func (o *ExportOrchestrator) resetLocked() {
	if o.stop != nil {
		close(o.stop)
		o.stop = nil
	}
	if o.cancelPoll != nil {
		o.cancelPoll()
		o.cancelPoll = nil
	}
	if o.idleTimer != nil {
		o.idleTimer.Stop()
		o.idleTimer = nil
	}
	o.state = ExportIdle
	o.jobID = ""
	o.snapshot = nil
	o.downloaded = false
}

// State returns the current local state.
func (o *ExportOrchestrator) State() ExportState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Job returns a copy of the latest server snapshot, if any.
func (o *ExportOrchestrator) Job() (api.ExportJob, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.snapshot == nil {
		return api.ExportJob{}, false
	}
	return *o.snapshot, true
}

// Failure returns the surfaced failure reason, empty when none.
func (o *ExportOrchestrator) Failure() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.failure
}
