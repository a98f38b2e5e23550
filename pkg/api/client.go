package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Client talks to the photo-organizer backend.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// StatusError is returned for non-2xx backend responses so callers can
// branch on the status code without parsing the message.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// NewClient creates a new backend client.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				MaxConnsPerHost:    10,
				IdleConnTimeout:    90 * time.Second,
				DisableCompression: false,
			},
		},
		rateLimiter: rate.NewLimiter(rate.Every(10*time.Millisecond), 100), // 100 req/sec
	}
}

// Ping checks if the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/api/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed with status: %d", resp.StatusCode)
	}

	return nil
}

// ListPhotos fetches one page of photos. rawQuery is the canonical encoded
// query string produced by the organizer's query builder; it is passed
// through untouched so identical criteria hit identical URLs.
func (c *Client) ListPhotos(ctx context.Context, rawQuery string) (*PhotoList, error) {
	endpoint := fmt.Sprintf("%s/api/photos", c.baseURL)
	if rawQuery != "" {
		endpoint = fmt.Sprintf("%s?%s", endpoint, rawQuery)
	}

	var list PhotoList
	if err := c.get(ctx, endpoint, &list); err != nil {
		return nil, err
	}

	return &list, nil
}

// RatePhoto sets the rating of a single photo and returns the updated record.
func (c *Client) RatePhoto(ctx context.Context, photoID, rating int) (*Photo, error) {
	endpoint := fmt.Sprintf("%s/api/photos/%d/rate", c.baseURL, photoID)

	body := map[string]interface{}{
		"rating": rating,
	}

	var photo Photo
	if err := c.post(ctx, endpoint, body, &photo); err != nil {
		return nil, err
	}

	return &photo, nil
}

// AddTag attaches a tag to a photo, creating the tag if it does not exist.
// Not safe to retry blindly: the backend treats this as a creation call.
func (c *Client) AddTag(ctx context.Context, photoID int, tagName string) (*Photo, error) {
	endpoint := fmt.Sprintf("%s/api/photos/%d/tags", c.baseURL, photoID)

	body := map[string]interface{}{
		"tag_name": tagName,
	}

	var photo Photo
	if err := c.post(ctx, endpoint, body, &photo); err != nil {
		return nil, err
	}

	return &photo, nil
}

// RemoveTag detaches a tag from a photo and returns the updated record.
func (c *Client) RemoveTag(ctx context.Context, photoID, tagID int) (*Photo, error) {
	endpoint := fmt.Sprintf("%s/api/photos/%d/tags/%d", c.baseURL, photoID, tagID)

	var photo Photo
	if err := c.delete(ctx, endpoint, nil, &photo); err != nil {
		return nil, err
	}

	return &photo, nil
}

// ListTags fetches the global tag list.
func (c *Client) ListTags(ctx context.Context) ([]Tag, error) {
	endpoint := fmt.Sprintf("%s/api/tags", c.baseURL)

	var tags []Tag
	if err := c.get(ctx, endpoint, &tags); err != nil {
		return nil, err
	}

	return tags, nil
}

// ScanFolder asks the backend to ingest a folder of images.
func (c *Client) ScanFolder(ctx context.Context, folderPath string) (*ScanFolderResponse, error) {
	endpoint := fmt.Sprintf("%s/api/photos/scan-folder", c.baseURL)

	body := map[string]interface{}{
		"folder_path": folderPath,
	}

	var result ScanFolderResponse
	if err := c.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// BulkDelete deletes a set of photos in one call.
func (c *Client) BulkDelete(ctx context.Context, imageIDs []int) (*BulkDeleteResponse, error) {
	endpoint := fmt.Sprintf("%s/api/bulk/delete", c.baseURL)

	body := map[string]interface{}{
		"image_ids": imageIDs,
	}

	var result BulkDeleteResponse
	if err := c.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// BulkRate sets the same rating on a set of photos in one call.
func (c *Client) BulkRate(ctx context.Context, imageIDs []int, rating int) (*BulkRateResponse, error) {
	endpoint := fmt.Sprintf("%s/api/bulk/rate", c.baseURL)

	body := map[string]interface{}{
		"image_ids": imageIDs,
		"rating":    rating,
	}

	var result BulkRateResponse
	if err := c.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// BulkTag adds tags to a set of photos in one call.
func (c *Client) BulkTag(ctx context.Context, imageIDs []int, tagNames []string) (*BulkTagResponse, error) {
	endpoint := fmt.Sprintf("%s/api/bulk/tag", c.baseURL)

	body := map[string]interface{}{
		"image_ids": imageIDs,
		"tag_names": tagNames,
	}

	var result BulkTagResponse
	if err := c.post(ctx, endpoint, body, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// SubmitExport creates an export job. Creation calls are never retried here;
// the orchestrator owns deduplication.
func (c *Client) SubmitExport(ctx context.Context, req ExportRequest) (*ExportSubmitResponse, error) {
	endpoint := fmt.Sprintf("%s/api/export", c.baseURL)

	var result ExportSubmitResponse
	if err := c.post(ctx, endpoint, req, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// GetExportJob fetches the current state of an export job.
func (c *Client) GetExportJob(ctx context.Context, jobID string) (*ExportJob, error) {
	endpoint := fmt.Sprintf("%s/api/export/jobs/%s", c.baseURL, jobID)

	var job ExportJob
	if err := c.get(ctx, endpoint, &job); err != nil {
		return nil, err
	}

	return &job, nil
}

// DownloadExport streams the finished export payload. The caller owns the
// returned reader and must close it.
func (c *Client) DownloadExport(ctx context.Context, jobID string) (io.ReadCloser, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/api/export/download/%s", c.baseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	return resp.Body, nil
}

// DeleteExportJob removes a job and its produced files from the backend.
func (c *Client) DeleteExportJob(ctx context.Context, jobID string) error {
	endpoint := fmt.Sprintf("%s/api/export/jobs/%s", c.baseURL, jobID)
	return c.delete(ctx, endpoint, nil, nil)
}

// ListAlbums fetches one page of albums.
func (c *Client) ListAlbums(ctx context.Context, page, pageSize int) (*AlbumPage, error) {
	endpoint := fmt.Sprintf("%s/api/albums?page=%d&page_size=%d", c.baseURL, page, pageSize)

	var albums AlbumPage
	if err := c.get(ctx, endpoint, &albums); err != nil {
		return nil, err
	}

	return &albums, nil
}

// CreateAlbum creates a new album. Creation calls are never retried here.
func (c *Client) CreateAlbum(ctx context.Context, params CreateAlbumParams) (*Album, error) {
	endpoint := fmt.Sprintf("%s/api/albums", c.baseURL)

	var album Album
	if err := c.post(ctx, endpoint, params, &album); err != nil {
		return nil, err
	}

	return &album, nil
}

// UpdateAlbum updates an album's name and description.
func (c *Client) UpdateAlbum(ctx context.Context, albumID int, name, description string) (*Album, error) {
	endpoint := fmt.Sprintf("%s/api/albums/%d", c.baseURL, albumID)

	body := map[string]interface{}{}
	if name != "" {
		body["name"] = name
	}
	if description != "" {
		body["description"] = description
	}

	var album Album
	if err := c.put(ctx, endpoint, body, &album); err != nil {
		return nil, err
	}

	return &album, nil
}

// DeleteAlbum removes an album. Photos remain untouched.
func (c *Client) DeleteAlbum(ctx context.Context, albumID int) error {
	endpoint := fmt.Sprintf("%s/api/albums/%d", c.baseURL, albumID)
	return c.delete(ctx, endpoint, nil, nil)
}

// AddAlbumPhotos adds photos to an album and returns the updated album.
func (c *Client) AddAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*Album, error) {
	endpoint := fmt.Sprintf("%s/api/albums/%d/photos", c.baseURL, albumID)

	body := map[string]interface{}{
		"image_ids": imageIDs,
	}

	var album Album
	if err := c.post(ctx, endpoint, body, &album); err != nil {
		return nil, err
	}

	return &album, nil
}

// RemoveAlbumPhotos removes photos from an album.
func (c *Client) RemoveAlbumPhotos(ctx context.Context, albumID int, imageIDs []int) (*Album, error) {
	endpoint := fmt.Sprintf("%s/api/albums/%d/photos", c.baseURL, albumID)

	body := map[string]interface{}{
		"image_ids": imageIDs,
	}

	var album Album
	if err := c.delete(ctx, endpoint, body, &album); err != nil {
		return nil, err
	}

	return &album, nil
}

// Helper methods for HTTP operations

func (c *Client) get(ctx context.Context, url string, result interface{}) error {
	return c.request(ctx, http.MethodGet, url, nil, result)
}

func (c *Client) post(ctx context.Context, url string, body interface{}, result interface{}) error {
	return c.request(ctx, http.MethodPost, url, body, result)
}

func (c *Client) put(ctx context.Context, url string, body interface{}, result interface{}) error {
	return c.request(ctx, http.MethodPut, url, body, result)
}

func (c *Client) delete(ctx context.Context, url string, body interface{}, result interface{}) error {
	return c.request(ctx, http.MethodDelete, url, body, result)
}

func (c *Client) request(ctx context.Context, method, url string, body interface{}, result interface{}) error {
	// Rate limit
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	// Prepare body
	var bodyReader io.Reader
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	requestID := uuid.NewString()

	requestLogger := log.Info().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", url)

	if len(jsonBody) > 0 && zerolog.GlobalLevel() <= zerolog.DebugLevel {
		var buf bytes.Buffer
		if err := json.Indent(&buf, jsonBody, "", "  "); err != nil {
			buf.Write(jsonBody)
		}
		requestLogger = requestLogger.Str("payload", buf.String())
	}

	requestLogger.Msg("Calling backend API")

	// Create request
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	// Set headers
	req.Header.Set("x-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	// Execute request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Info().
		Str("request_id", requestID).
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Msg("Received backend API response")

	// Check status
	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	// Decode response
	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
