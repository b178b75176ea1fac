// Package generation accepts background generation requests: it gates them on
// identity, the per-user rate window and the credit balance, then records a
// pending job for the worker.
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"productstudio/internal/auth"
	"productstudio/internal/domain"
	"productstudio/internal/metrics"
	"productstudio/internal/ratelimit"
	"productstudio/internal/styles"
)

// Limiter admits or rejects a call for a key.
type Limiter interface {
	CheckAndRecord(key string) error
}

// Notifier is told about freshly created jobs so a worker can pick them up
// without waiting for its next poll.
type Notifier interface {
	Enqueue(ctx context.Context, jobID string) error
}

// Request is the caller supplied part of a submission.
type Request struct {
	ImageURL string `json:"imageUrl"`
	StyleID  string `json:"style_id"`
}

// Result identifies the accepted job.
type Result struct {
	JobID            string `json:"jobId"`
	RemainingCredits int    `json:"-"`
}

type Service struct {
	jobs     domain.JobRepository
	limiter  Limiter
	styles   *styles.Catalogue
	notifier Notifier
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// Options wires optional collaborators.
type Options struct {
	Notifier Notifier
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

func NewService(jobs domain.JobRepository, limiter Limiter, catalogue *styles.Catalogue, opts Options) *Service {
	if catalogue == nil {
		catalogue = styles.Default()
	}
	return &Service{
		jobs:     jobs,
		limiter:  limiter,
		styles:   catalogue,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   opts.Logger,
	}
}

// Submit runs the gates in order: identity, rate window, payload, credit.
// The credit is reserved in the same statement that creates the job.
func (s *Service) Submit(ctx context.Context, id auth.Identity, req Request) (*Result, error) {
	res, err := s.submit(ctx, id, req)
	s.metrics.RecordSubmission(outcomeOf(err))
	return res, err
}

func (s *Service) submit(ctx context.Context, id auth.Identity, req Request) (*Result, error) {
	if !id.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := s.limiter.CheckAndRecord(id.UserID); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			return nil, domain.ErrRateLimited
		}
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	imageURL := strings.TrimSpace(req.ImageURL)
	styleID := strings.TrimSpace(req.StyleID)
	if imageURL == "" || styleID == "" {
		return nil, domain.ErrInvalidRequest
	}
	if !validAssetURL(imageURL) {
		return nil, fmt.Errorf("%w: image url must be http(s)", domain.ErrInvalidRequest)
	}
	if !s.styles.Valid(styleID) {
		return nil, fmt.Errorf("%w: unknown style %q", domain.ErrInvalidRequest, styleID)
	}

	job, remaining, err := s.jobs.CreateWithCredit(ctx, domain.NewJob{
		UserID:   id.UserID,
		ImageURL: imageURL,
		StyleID:  styleID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoCredit) {
			return nil, domain.ErrNoCredit
		}
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.notifier != nil {
		if err := s.notifier.Enqueue(ctx, job.ID); err != nil {
			s.logger.Warn().Err(err).Str("job_id", job.ID).Msg("generation: notify worker failed")
		}
	}
	s.logger.Info().
		Str("job_id", job.ID).
		Str("user_id", id.UserID).
		Str("style_id", styleID).
		Int("remaining_credits", remaining).
		Msg("generation: job accepted")
	return &Result{JobID: job.ID, RemainingCredits: remaining}, nil
}

func validAssetURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeAccepted
	case errors.Is(err, domain.ErrUnauthorized):
		return metrics.OutcomeUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return metrics.OutcomeRateLimited
	case errors.Is(err, domain.ErrInvalidRequest):
		return metrics.OutcomeInvalid
	case errors.Is(err, domain.ErrNoCredit):
		return metrics.OutcomeNoCredit
	default:
		return metrics.OutcomeError
	}
}
