package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/studious-lms/studious-files/internal/config"
	"github.com/studious-lms/studious-files/internal/logging"
	"github.com/studious-lms/studious-files/internal/models"
)

// ctxKeyMethod carries the HTTP method through the request context so the
// retry policy can see it even when the response is nil (connection failure).
type ctxKey int

const ctxKeyMethod ctxKey = iota

// retryLogger implements the retryablehttp.LeveledLogger interface,
// forwarding transport retry warnings to the structured logger.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Interface("detail", keysAndValues).Msg("transport: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Interface("detail", keysAndValues).Msg("transport: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{})  {}
func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {}

// Client is the typed RPC client for the studious class-files backend.
// All folder and file operations are scoped to the configured class.
type Client struct {
	httpClient *nethttp.Client
	baseURL    string
	apiToken   string
	classID    string
	logger     *logging.Logger
}

// NewClient creates a new API client from config.
func NewClient(cfg *config.Config, logger *logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("API base URL is empty")
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	// Wrap the transport with retry logic. Retries are restricted to
	// idempotent reads: mutating operations are single-shot and surface
	// their first failure to the dispatcher.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 5 * time.Second
	retryClient.Logger = &retryLogger{logger: logger}
	retryClient.CheckRetry = func(ctx context.Context, resp *nethttp.Response, err error) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// A mutation whose connection dies may already have been applied
		// server side, so it is never re-sent. resp is nil on a transport
		// failure; the method travels in the request context.
		if method, _ := ctx.Value(ctxKeyMethod).(string); method != nethttp.MethodGet {
			return false, nil
		}
		if err != nil {
			return true, nil
		}
		return IsRetryableStatus(resp.StatusCode), nil
	}

	return &Client{
		httpClient: retryClient.StandardClient(),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiToken:   cfg.APIToken,
		classID:    cfg.ClassID,
		logger:     logger,
	}, nil
}

// ClassID returns the class this client is scoped to.
func (c *Client) ClassID() string {
	return c.classID
}

// doRequest performs an HTTP request with authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*nethttp.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	ctx = context.WithValue(ctx, ctxKeyMethod, method)
	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

// decodeError drains the response body and converts it into a RemoteError,
// preserving the backend's message text where available.
func decodeError(resp *nethttp.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var envelope models.ErrorResponse
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != "" {
		return &RemoteError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Code,
			Message:    envelope.Error,
		}
	}
	return &RemoteError{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// decodeInto decodes a successful JSON response body into out.
func decodeInto(resp *nethttp.Response, out interface{}) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetRootFolder returns the class's root folder with its immediate children.
func (c *Client) GetRootFolder(ctx context.Context) (*models.FolderRecord, error) {
	path := fmt.Sprintf("/api/v1/classes/%s/folders/root", c.classID)

	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var folder models.FolderRecord
	if err := decodeInto(resp, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetFolder returns a folder with its immediate children.
func (c *Client) GetFolder(ctx context.Context, folderID string) (*models.FolderRecord, error) {
	path := fmt.Sprintf("/api/v1/classes/%s/folders/%s", c.classID, folderID)

	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var folder models.FolderRecord
	if err := decodeInto(resp, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// GetParents returns a folder's ancestor chain, nearest parent first.
// The root folder yields an empty chain.
func (c *Client) GetParents(ctx context.Context, folderID string) ([]models.BreadcrumbEntry, error) {
	path := fmt.Sprintf("/api/v1/folders/%s/parents", folderID)

	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var parents models.ParentsResponse
	if err := decodeInto(resp, &parents); err != nil {
		return nil, err
	}
	return parents.Parents, nil
}

// CreateFolder creates a new folder. An empty parentID means the class root.
func (c *Client) CreateFolder(ctx context.Context, parentID, name, color string) (*models.FolderRecord, error) {
	path := fmt.Sprintf("/api/v1/classes/%s/folders", c.classID)
	body := models.CreateFolderRequest{
		Name:           name,
		ParentFolderID: parentID,
		Color:          color,
	}

	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusCreated && resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var folder models.FolderRecord
	if err := decodeInto(resp, &folder); err != nil {
		return nil, err
	}
	return &folder, nil
}

// UpdateFolder renames and/or recolors a folder.
func (c *Client) UpdateFolder(ctx context.Context, folderID, name, color string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/folders/%s", c.classID, folderID)
	body := models.UpdateFolderRequest{Name: name, Color: color}

	resp, err := c.doRequest(ctx, nethttp.MethodPatch, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// MoveFolder reparents a folder. The backend is the authoritative rejector
// for moves that would create a cycle.
func (c *Client) MoveFolder(ctx context.Context, folderID, targetParentID string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/folders/%s/move", c.classID, folderID)
	body := models.MoveRequest{TargetFolderID: targetParentID}

	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// DeleteFolder deletes a folder. Contents handling (cascade vs reject) is
// backend policy.
func (c *Client) DeleteFolder(ctx context.Context, folderID string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/folders/%s", c.classID, folderID)

	resp, err := c.doRequest(ctx, nethttp.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusNoContent && resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// Upload is one file to attach to a folder.
type Upload struct {
	Name   string
	Reader io.Reader
}

// UploadFiles attaches files to a folder via a single multipart request.
// No client-side deadline is imposed; large batches on slow links take as
// long as they take, bounded only by the caller's context.
func (c *Client) UploadFiles(ctx context.Context, folderID string, uploads []Upload) ([]models.FileRecord, error) {
	if len(uploads) == 0 {
		return nil, nil
	}

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		var err error
		defer func() { pw.CloseWithError(err) }()

		for _, up := range uploads {
			var part io.Writer
			part, err = writer.CreateFormFile("files", up.Name)
			if err != nil {
				return
			}
			if _, err = io.Copy(part, up.Reader); err != nil {
				return
			}
		}
		err = writer.Close()
	}()

	path := fmt.Sprintf("/api/v1/classes/%s/folders/%s/files", c.classID, folderID)
	ctx = context.WithValue(ctx, ctxKeyMethod, nethttp.MethodPost)
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, c.baseURL+path, pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("folder_id", folderID).Msg("Upload failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusCreated && resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var result struct {
		Files []models.FileRecord `json:"files"`
	}
	if err := decodeInto(resp, &result); err != nil {
		return nil, err
	}
	return result.Files, nil
}

// RenameFile renames a file.
func (c *Client) RenameFile(ctx context.Context, fileID, newName string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/files/%s", c.classID, fileID)
	body := models.RenameFileRequest{Name: newName}

	resp, err := c.doRequest(ctx, nethttp.MethodPatch, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// MoveFile reparents a file into a target folder.
func (c *Client) MoveFile(ctx context.Context, fileID, targetFolderID string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/files/%s/move", c.classID, fileID)
	body := models.MoveRequest{TargetFolderID: targetFolderID}

	resp, err := c.doRequest(ctx, nethttp.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// DeleteFile deletes a file.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	path := fmt.Sprintf("/api/v1/classes/%s/files/%s", c.classID, fileID)

	resp, err := c.doRequest(ctx, nethttp.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusNoContent && resp.StatusCode != nethttp.StatusOK {
		return decodeError(resp)
	}
	return nil
}

// GetSignedURL obtains a time-limited download/preview URL for a file.
func (c *Client) GetSignedURL(ctx context.Context, fileID string) (*models.SignedURLResponse, error) {
	path := fmt.Sprintf("/api/v1/files/%s/signed-url", fileID)

	resp, err := c.doRequest(ctx, nethttp.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, decodeError(resp)
	}

	var signed models.SignedURLResponse
	if err := decodeInto(resp, &signed); err != nil {
		return nil, err
	}
	return &signed, nil
}
