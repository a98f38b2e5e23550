package api

import "time"

// Photo represents a photo record as returned by the backend.
type Photo struct {
	ID               int        `json:"id"`
	FilePath         string     `json:"file_path"`
	OriginalFilename string     `json:"original_filename,omitempty"`
	CaptureDate      *time.Time `json:"capture_date,omitempty"`
	CameraModel      string     `json:"camera_model,omitempty"`
	ThumbnailPath    string     `json:"thumbnail_path,omitempty"`
	Rating           int        `json:"rating"`
	DateAdded        time.Time  `json:"date_added"`
	Tags             []TagInfo  `json:"associated_tags,omitempty"`
}

// TagInfo is a tag association carried on a photo. Confidence is only
// present for AI-generated tags.
type TagInfo struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	IsAIGenerated bool     `json:"is_ai_generated"`
	Confidence    *float64 `json:"confidence,omitempty"`
}

// Tag is an entry from the global tag list.
type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// PageMeta contains pagination metadata for list responses.
type PageMeta struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// ScanFolderResponse summarizes a folder scan run.
type ScanFolderResponse struct {
	NewImagesAdded       int      `json:"new_images_added"`
	TotalImagesProcessed int      `json:"total_images_processed"`
	Errors               []string `json:"errors,omitempty"`
}

// Bulk operation responses. The backend reports a different count shape per
// operation kind; the organizer normalizes these into one result type.

type BulkDeleteResponse struct {
	DeletedCount int      `json:"deleted_count"`
	FailedCount  int      `json:"failed_count"`
	FailedIDs    []int    `json:"failed_ids,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}

type BulkRateResponse struct {
	UpdatedCount int `json:"updated_count"`
	FailedCount  int `json:"failed_count"`
}

type BulkTagResponse struct {
	SuccessCount int `json:"success_count"`
	FailedCount  int `json:"failed_count"`
	TagsAdded    int `json:"tags_added"`
}

// Export job statuses as reported by the backend.
const (
	ExportStatusPending    = "pending"
	ExportStatusProcessing = "processing"
	ExportStatusCompleted  = "completed"
	ExportStatusFailed     = "failed"
)

// ExportRequest submits a new export job. Exactly one of ImageIDs or AlbumID
// must be set.
type ExportRequest struct {
	ImageIDs        []int  `json:"image_ids,omitempty"`
	AlbumID         *int   `json:"album_id,omitempty"`
	ExportFormat    string `json:"export_format"` // "zip" or "folder"
	Quality         string `json:"quality"`       // original, high, medium, low
	IncludeMetadata bool   `json:"include_metadata"`
}

// ExportSubmitResponse is the acknowledgement for a submitted export job.
type ExportSubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ExportJob is a point-in-time snapshot of a job's server-side state.
type ExportJob struct {
	JobID           string     `json:"job_id"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"` // percent, 0-100
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	ExportPath      string     `json:"export_path,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Terminal reports whether the job has reached a state it cannot leave.
func (j *ExportJob) Terminal() bool {
	return j.Status == ExportStatusCompleted || j.Status == ExportStatusFailed
}

// Album represents an album as returned by the backend.
type Album struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	CoverImageID *int      `json:"cover_image_id,omitempty"`
	DateCreated  time.Time `json:"date_created"`
	DateModified time.Time `json:"date_modified"`
	PhotoCount   int       `json:"photo_count"`
}

// AlbumPage is a paginated album listing.
type AlbumPage struct {
	Items []Album  `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// CreateAlbumParams parameters for album creation.
type CreateAlbumParams struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	CoverImageID *int   `json:"cover_image_id,omitempty"`
}
