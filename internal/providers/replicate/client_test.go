package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		Token:        StaticToken("r8_test"),
		BaseURL:      srv.URL,
		PollInterval: 5 * time.Millisecond,
		MaxWait:      2 * time.Second,
	})
}

func TestRunVersionedModelPollsUntilSucceeded(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	mux.HandleFunc("/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer r8_test", r.Header.Get("Authorization"))
		assert.Equal(t, "wait", r.Header.Get("Prefer"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc123", body["version"])
		assert.Equal(t, "https://x/a.png", body["input"].(map[string]any)["image"])
		_, _ = w.Write([]byte(`{"id":"p1","status":"starting"}`))
	})
	mux.HandleFunc("/predictions/p1", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&polls, 1) < 2 {
			_, _ = w.Write([]byte(`{"id":"p1","status":"processing"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p1","status":"succeeded","output":"https://replicate.delivery/out.png"}`))
	})

	c := newTestClient(t, mux)
	pred, err := c.Run(context.Background(), "lucataco/remove-bg:abc123", map[string]any{"image": "https://x/a.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://replicate.delivery/out.png"}, pred.URLs())
	assert.EqualValues(t, 2, atomic.LoadInt32(&polls))
}

func TestRunOfficialModelReturnsImmediately(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/models/black-forest-labs/flux-1.1-pro/predictions", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasVersion := body["version"]
		assert.False(t, hasVersion)
		_, _ = w.Write([]byte(`{"id":"p2","status":"succeeded","output":["https://replicate.delivery/a.png",""]}`))
	})

	c := newTestClient(t, mux)
	pred, err := c.Run(context.Background(), "black-forest-labs/flux-1.1-pro", map[string]any{"prompt": "p"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://replicate.delivery/a.png"}, pred.URLs())
}

func TestRunFailedPrediction(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p3","status":"failed","error":"NSFW content detected"}`))
	}))

	_, err := c.Run(context.Background(), "owner/model", nil)
	var predErr *PredictionError
	require.True(t, errors.As(err, &predErr))
	assert.Equal(t, StatusFailed, predErr.Status)
	assert.Equal(t, "NSFW content detected", predErr.Detail)
}

func TestRunAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail":"You have insufficient credit"}`))
	}))

	_, err := c.Run(context.Background(), "owner/model", nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Equal(t, "You have insufficient credit", apiErr.Detail)
}

func TestRunWithoutToken(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Run(context.Background(), "owner/model", nil)
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestRunStopsAtMaxWait(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"p4","status":"processing"}`))
	}))
	defer srv.Close()
	c := NewClient(Options{Token: StaticToken("t"), BaseURL: srv.URL, PollInterval: 5 * time.Millisecond, MaxWait: 50 * time.Millisecond})

	_, err := c.Run(context.Background(), "owner/model", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPredictionURLs(t *testing.T) {
	cases := map[string][]string{
		`null`:           nil,
		`""`:             nil,
		`"https://a"`:    {"https://a"},
		`["https://a"]`:  {"https://a"},
		`{"not":"urls"}`: nil,
	}
	for raw, want := range cases {
		p := Prediction{Output: json.RawMessage(raw)}
		assert.Equal(t, want, p.URLs(), raw)
	}
}
