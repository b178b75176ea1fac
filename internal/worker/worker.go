// Package worker drains pending generation jobs: claim, generate, persist,
// then mark the job done or failed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"productstudio/internal/domain"
	"productstudio/internal/metrics"
	"productstudio/internal/providers/image"
	"productstudio/internal/storage"
	"productstudio/internal/styles"
)

const (
	defaultPollInterval = 2 * time.Second
	defaultJobTimeout   = 5 * time.Minute
	maxResultBytes      = 25 << 20
)

// Waker delivers job ids pushed by the API. Wait returns "" on timeout.
type Waker interface {
	Wait(ctx context.Context, timeout time.Duration) (string, error)
}

// ResultStore keeps a copy of generated images; provider URLs expire.
type ResultStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// Requeuer is implemented by repositories that can recover jobs abandoned in
// processing by a crashed worker.
type Requeuer interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int, error)
}

type Options struct {
	PollInterval time.Duration
	JobTimeout   time.Duration
	// StaleAfter enables requeueing of processing jobs older than this at start.
	StaleAfter time.Duration
	Waker      Waker
	Store      ResultStore
	HTTPClient *http.Client
	Metrics    *metrics.Collector
	Logger     zerolog.Logger
}

type Worker struct {
	jobs       domain.JobRepository
	generator  image.Generator
	styles     *styles.Catalogue
	poll       time.Duration
	jobTimeout time.Duration
	staleAfter time.Duration
	waker      Waker
	store      ResultStore
	httpClient *http.Client
	metrics    *metrics.Collector
	logger     zerolog.Logger

	// wakerDown is owned by the Run goroutine.
	wakerDown bool
}

func New(jobs domain.JobRepository, generator image.Generator, catalogue *styles.Catalogue, opts Options) *Worker {
	if catalogue == nil {
		catalogue = styles.Default()
	}
	w := &Worker{
		jobs:       jobs,
		generator:  generator,
		styles:     catalogue,
		poll:       opts.PollInterval,
		jobTimeout: opts.JobTimeout,
		staleAfter: opts.StaleAfter,
		waker:      opts.Waker,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if w.poll <= 0 {
		w.poll = defaultPollInterval
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = defaultJobTimeout
	}
	if w.httpClient == nil {
		w.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return w
}

// Run processes jobs until ctx is cancelled. Between empty polls it waits for
// a wake-up or the poll interval, whichever comes first.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Dur("poll_interval", w.poll).Msg("worker: started")
	w.requeueStale(ctx)
	for {
		for {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			found, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error().Err(err).Msg("worker: failed to claim job")
				break
			}
			if !found {
				break
			}
		}
		if err := w.idle(ctx); err != nil {
			return err
		}
	}
}

func (w *Worker) idle(ctx context.Context) error {
	if w.waker != nil {
		_, err := w.waker.Wait(ctx, w.poll)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			if w.wakerDown {
				w.wakerDown = false
				w.logger.Info().Msg("worker: wake-up queue recovered")
			}
			return nil
		}
		if !w.wakerDown {
			w.wakerDown = true
			w.logger.Warn().Err(err).Msg("worker: wake-up queue unavailable, polling")
		}
	}
	t := time.NewTimer(w.poll)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Worker) requeueStale(ctx context.Context) {
	r, ok := w.jobs.(Requeuer)
	if !ok || w.staleAfter <= 0 {
		return
	}
	n, err := r.RequeueStale(ctx, w.staleAfter)
	if err != nil {
		w.logger.Warn().Err(err).Msg("worker: requeue stale jobs failed")
		return
	}
	if n > 0 {
		w.logger.Info().Int("jobs", n).Msg("worker: requeued stale jobs")
	}
}

// RunOnce claims and processes at most one job. It reports whether a job was
// found.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimPending(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job *domain.Job) {
	start := time.Now()
	log := w.logger.With().Str("job_id", job.ID).Str("style_id", job.StyleID).Logger()
	log.Info().Msg("worker: picked job")

	resultURL, err := w.generate(ctx, job)
	status := domain.JobStatusDone
	if err != nil {
		status = domain.JobStatusFailed
		log.Error().Err(err).Msg("worker: job failed")
		err = w.jobs.Fail(ctx, job.ID)
	} else {
		err = w.jobs.Complete(ctx, job.ID, resultURL)
	}
	if err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("worker: update status failed")
		return
	}
	elapsed := time.Since(start)
	w.metrics.RecordJob(string(status), elapsed.Seconds())
	log.Info().Str("status", string(status)).Dur("elapsed", elapsed).Msg("worker: job finished")
}

func (w *Worker) generate(ctx context.Context, job *domain.Job) (string, error) {
	prompt, ok := w.styles.Prompt(job.StyleID)
	if !ok {
		return "", fmt.Errorf("unknown style %q", job.StyleID)
	}
	ctx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	res, err := w.generator.Generate(ctx, image.Request{
		JobID:    job.ID,
		ImageURL: job.ImageURL,
		Prompt:   prompt,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(res.URL) == "" {
		return "", errors.New("generator returned no image")
	}
	return w.persist(ctx, job, res), nil
}

// persist copies the result into the store and returns its public URL. The
// provider URL is kept when copying fails.
func (w *Worker) persist(ctx context.Context, job *domain.Job, res *image.Result) string {
	if w.store == nil {
		return res.URL
	}
	data, contentType, err := w.download(ctx, res.URL)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: keep provider url, download failed")
		return res.URL
	}
	key, err := w.store.Write(ctx, storage.ResultKey(job.UserID, job.ID, extensionFor(contentType, res.Format)), data)
	if err != nil {
		w.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: keep provider url, store write failed")
		return res.URL
	}
	return w.store.URL(key)
}

func (w *Worker) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download result: http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultBytes+1))
	if err != nil {
		return nil, "", err
	}
	if len(data) > maxResultBytes {
		return nil, "", errors.New("download result: too large")
	}
	return data, resp.Header.Get("Content-Type"), nil
}

func extensionFor(contentType, fallback string) string {
	for _, ct := range []string{contentType, fallback} {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			continue
		}
		switch mt {
		case "image/png":
			return ".png"
		case "image/jpeg":
			return ".jpg"
		case "image/webp":
			return ".webp"
		}
	}
	return ".png"
}
