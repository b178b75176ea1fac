// Package replicate is a small client for the Replicate predictions API.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrMissingToken indicates that the client has no API token to send.
var ErrMissingToken = errors.New("replicate: api token is required")

// Prediction states reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// TokenSource returns the API token to use for the next call.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken wraps a fixed token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// Options configures the client.
type Options struct {
	Token        TokenSource
	BaseURL      string
	HTTPClient   *http.Client
	Logger       zerolog.Logger
	PollInterval time.Duration
	// MaxWait bounds a single Run including polling.
	MaxWait time.Duration
}

type Client struct {
	token        TokenSource
	baseURL      string
	httpClient   *http.Client
	logger       zerolog.Logger
	pollInterval time.Duration
	maxWait      time.Duration
}

// Prediction is the subset of the prediction object the client uses.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// Terminal reports whether the prediction will not change anymore.
func (p *Prediction) Terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// URLs returns the output as a list of URLs. Models answer with either a
// single string or an array of strings.
func (p *Prediction) URLs() []string {
	if len(p.Output) == 0 || string(p.Output) == "null" {
		return nil
	}
	var one string
	if err := json.Unmarshal(p.Output, &one); err == nil {
		if one == "" {
			return nil
		}
		return []string{one}
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil {
		out := many[:0]
		for _, u := range many {
			if u != "" {
				out = append(out, u)
			}
		}
		return out
	}
	return nil
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: http %d: %s", e.StatusCode, e.Detail)
}

// PredictionError is returned when a prediction ends failed or canceled.
type PredictionError struct {
	ID     string
	Status string
	Detail string
}

func (e *PredictionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("replicate: prediction %s %s", e.ID, e.Status)
	}
	return fmt.Sprintf("replicate: prediction %s %s: %s", e.ID, e.Status, e.Detail)
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	maxWait := opts.MaxWait
	if maxWait <= 0 {
		maxWait = 5 * time.Minute
	}
	token := opts.Token
	if token == nil {
		token = StaticToken("")
	}
	return &Client{
		token:        token,
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       opts.Logger,
		pollInterval: poll,
		maxWait:      maxWait,
	}
}

// Run starts a prediction for model and waits for it to finish. model is
// either "owner/name" (latest official version) or "owner/name:version".
func (c *Client) Run(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, c.maxWait)
	defer cancel()

	pred, err := c.create(ctx, model, input)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().Str("prediction_id", pred.ID).Str("model", model).Str("status", pred.Status).Msg("replicate: prediction created")

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for !pred.Terminal() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("replicate: waiting for %s: %w", pred.ID, ctx.Err())
		case <-ticker.C:
		}
		if pred, err = c.Get(ctx, pred.ID); err != nil {
			return nil, err
		}
	}

	if pred.Status != StatusSucceeded {
		return nil, &PredictionError{ID: pred.ID, Status: pred.Status, Detail: errorDetail(pred.Error)}
	}
	return pred, nil
}

func (c *Client) create(ctx context.Context, model string, input map[string]any) (*Prediction, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("replicate: model is required")
	}
	body := map[string]any{"input": input}
	endpoint := c.baseURL + "/models/" + model + "/predictions"
	if name, version, ok := strings.Cut(model, ":"); ok {
		if name == "" || version == "" {
			return nil, fmt.Errorf("replicate: invalid model reference %q", model)
		}
		body["version"] = version
		endpoint = c.baseURL + "/predictions"
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "wait")
	return c.do(req)
}

// Get fetches the current state of a prediction.
func (c *Client) Get(ctx context.Context, id string) (*Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*Prediction, error) {
	token, err := c.token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("replicate: resolve token: %w", err)
	}
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var problem struct {
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(raw, &problem)
		if problem.Detail == "" {
			problem.Detail = strings.TrimSpace(string(raw))
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Detail: problem.Detail}
	}
	var pred Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	if pred.ID == "" {
		return nil, errors.New("replicate: prediction without id")
	}
	return &pred, nil
}

func errorDetail(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	default:
		raw, _ := json.Marshal(e)
		return string(raw)
	}
}
