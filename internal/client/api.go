// Package client talks to the studio HTTP API and drives a generation from
// upload to result.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"productstudio/internal/domain"
)

type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

type API struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewAPI(opts Options) *API {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &API{
		httpClient: client,
		baseURL:    base,
		token:      strings.TrimSpace(opts.Token),
	}
}

// APIError is a non-2xx answer. Message is the server's "error" field, or a
// generic text when the body carried none.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// Profile is the caller's account as returned by GET /api/profile.
type Profile struct {
	ID        string    `json:"id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
	Locale    string    `json:"locale"`
}

// Upload stores an image and returns its public URL.
func (c *API) Upload(ctx context.Context, name string, body io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, body); err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	var out struct {
		URL string `json:"url"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/uploads", mw.FormDataContentType(), &buf, &out, "Upload failed"); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", errors.New("upload: missing url in response")
	}
	return out.URL, nil
}

// Submit requests a generation and returns the job id.
func (c *API) Submit(ctx context.Context, imageURL, styleID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"imageUrl": imageURL, "style_id": styleID})
	if err != nil {
		return "", err
	}
	var out struct {
		JobID string `json:"jobId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/generate", "application/json", bytes.NewReader(payload), &out, "Generation failed"); err != nil {
		return "", err
	}
	if out.JobID == "" {
		return "", errors.New("generate: missing jobId in response")
	}
	return out.JobID, nil
}

func (c *API) Job(ctx context.Context, jobID string) (*domain.Job, error) {
	var job domain.Job
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), "", nil, &job, ""); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *API) Profile(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", "", nil, &p, ""); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *API) Styles(ctx context.Context) ([]string, error) {
	var out struct {
		Styles []string `json:"styles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/styles", "", nil, &out, ""); err != nil {
		return nil, err
	}
	return out.Styles, nil
}

func (c *API) do(ctx context.Context, method, path, contentType string, body io.Reader, out any, fallback string) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return &APIError{Status: resp.StatusCode, Message: e.Error}
		}
		if fallback == "" {
			fallback = fmt.Sprintf("http %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: fallback}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
