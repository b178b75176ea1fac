package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSubmission(t *testing.T) {
	c := New()

	c.RecordSubmission(OutcomeAccepted)
	c.RecordSubmission(OutcomeAccepted)
	c.RecordSubmission(OutcomeRateLimited)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.submissions.WithLabelValues(OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.submissions.WithLabelValues(OutcomeRateLimited)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.submissions.WithLabelValues(OutcomeNoCredit)))
}

func TestRecordJobAndCredits(t *testing.T) {
	c := New()

	c.RecordJob("done", 3.2)
	c.RecordJob("failed", 0.4)
	c.RecordCredits(10)
	c.RecordCredits(-5)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues("done")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues("failed")))
	assert.Equal(t, 10.0, testutil.ToFloat64(c.credits))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordSubmission(OutcomeAccepted)
		c.RecordJob("done", 1)
		c.RecordCredits(1)
	})
	assert.Nil(t, c.Registry())
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := New()
	c.RecordSubmission(OutcomeAccepted)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `studio_submissions_total{outcome="accepted"} 1`))
}

func TestServeExposesWorkerMetrics(t *testing.T) {
	c := New()
	c.RecordJob("done", 1.5)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- c.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `studio_jobs_finished_total{status="done"} 1`)
	assert.Contains(t, string(body), "studio_job_duration_seconds_count 1")

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
