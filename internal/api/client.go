package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client talks to the conversion backend's upload, job, download and health
// endpoints. It is safe for concurrent use.
type Client struct {
	config       *Config
	httpClient   *http.Client
	uploadClient *http.Client
	baseURL      string
}

// NewClient creates a backend client from config.
//
// Example:
//
//	client, err := api.NewClient(&api.Config{BaseURL: "http://localhost:5000", Timeout: 30})
//	if err != nil {
//		return err
//	}
//	state, err := client.JobStatus(ctx, jobID)
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Client{
		config:  config,
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
		uploadClient: &http.Client{
			Timeout: time.Duration(config.UploadTimeout) * time.Second,
		},
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload posts the file and form fields as one multipart request. The body is
// streamed, so large files are not buffered in memory.
func (c *Client) Upload(ctx context.Context, req UploadRequest) (*UploadResponse, error) {
	if req.File == nil {
		return nil, fmt.Errorf("upload: no file provided")
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	written := make(chan struct{})
	go func() {
		defer close(written)
		err := writeUploadForm(form, req)
		if err == nil {
			err = form.Close()
		}
		_ = pw.CloseWithError(err)
	}()
	// The form writer has stopped by the time Upload returns, also when the
	// backend answers before reading the whole body.
	defer func() {
		_ = pr.Close()
		<-written
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.uploadClient.Do(httpReq)
	if err != nil {
		if os.IsTimeout(err) {
			return nil, fmt.Errorf("upload timed out: %w", err)
		}
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = pr.Close()
		return nil, newError(resp.StatusCode, body)
	}

	var out UploadResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse upload response: %w", err)
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("upload response has no job_id")
	}
	out.RequestID = requestID
	return &out, nil
}

func writeUploadForm(form *multipart.Writer, req UploadRequest) error {
	if err := form.WriteField("action", req.Action); err != nil {
		return err
	}
	if err := form.WriteField("target", strconv.Itoa(req.Target)); err != nil {
		return err
	}
	if req.ToFormat != "" {
		if err := form.WriteField("to_format", req.ToFormat); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("file", filepath.Base(req.FileName))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, req.File)
	return err
}

// JobStatus fetches the current status of a job.
func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobState, error) {
	var state JobState
	if err := c.getJSON(ctx, "/job/"+url.PathEscape(jobID), &state); err != nil {
		return nil, fmt.Errorf("job status: %w", err)
	}
	return &state, nil
}

// DownloadURL is the navigation target for a finished job.
func (c *Client) DownloadURL(jobID string) string {
	return c.baseURL + "/download/" + url.PathEscape(jobID)
}

// Download follows the download endpoint, including the backend's redirect
// to storage, and returns the result stream.
func (c *Client) Download(ctx context.Context, jobID string) (*DownloadResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(jobID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Accept", "*/*")

	resp, err := c.uploadClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, newError(resp.StatusCode, body)
	}

	return &DownloadResult{
		Body:          resp.Body,
		FileName:      dispositionFileName(resp.Header.Get("Content-Disposition")),
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
	}, nil
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	var body healthBody
	if err := c.getJSON(ctx, "/health", &body); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if body.Status != "ok" {
		return fmt.Errorf("health check: unexpected status %q", body.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if os.IsTimeout(err) {
			return fmt.Errorf("request timed out: %w", err)
		}
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}
}

func newError(status int, body []byte) *Error {
	e := &Error{StatusCode: status, Body: string(body)}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		e.Message = parsed.Error
	}
	return e
}

func dispositionFileName(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	name := filepath.Base(params["filename"])
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}
