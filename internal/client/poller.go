package client

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"productstudio/internal/domain"
)

// State is a step of a generation as seen by the client.
type State string

const (
	StateIdle      State = "idle"
	StateUploading State = "uploading"
	StateSubmitted State = "submitted"
	StatePolling   State = "polling"
	StateResolved  State = "resolved"
	StateFailed    State = "failed"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 150
	DefaultDeadline    = 10 * time.Minute

	MsgGenerationFailed = "Generation failed. Please try again."
	MsgFallback         = "Something went wrong"
	MsgTimeout          = "timeout"
)

// ErrNoInput is returned when Generate is called without an image or style.
var ErrNoInput = errors.New("client: image and style are required")

// Snapshot is the observable poller state.
type Snapshot struct {
	State     State
	JobID     string
	ResultURL string
	Message   string
}

// Terminal reports whether the snapshot is resolved or failed.
func (s Snapshot) Terminal() bool {
	return s.State == StateResolved || s.State == StateFailed
}

// Backend is the part of the API the poller drives.
type Backend interface {
	Upload(ctx context.Context, name string, body io.Reader) (string, error)
	Submit(ctx context.Context, imageURL, styleID string) (string, error)
	Job(ctx context.Context, jobID string) (*domain.Job, error)
}

type PollerOptions struct {
	// Interval between status fetches. Defaults to 2s.
	Interval time.Duration
	// MaxAttempts bounds the number of status fetches.
	MaxAttempts int
	// Deadline bounds the whole polling phase.
	Deadline time.Duration
	Logger   zerolog.Logger
	// OnChange is called after every state transition.
	OnChange func(Snapshot)
}

// Input selects what to generate. Body is uploaded first when set; otherwise
// ImageURL is submitted as is.
type Input struct {
	Name     string
	Body     io.Reader
	ImageURL string
	StyleID  string
}

// Poller runs one generation at a time. Polling ticks never overlap, and
// starting a new generation or watch cancels the one in flight.
type Poller struct {
	backend Backend
	opts    PollerOptions

	mu     sync.Mutex
	snap   Snapshot
	run    uint64
	cancel context.CancelFunc
}

func NewPoller(backend Backend, opts PollerOptions) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	return &Poller{backend: backend, opts: opts, snap: Snapshot{State: StateIdle}}
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// begin supersedes the run in flight. The returned context is cancelled by a
// later begin or by calling end.
func (p *Poller) begin(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.run++
	run := p.run
	p.cancel = cancel
	p.mu.Unlock()

	return ctx, run, func() {
		p.mu.Lock()
		if p.run == run {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
	}
}

// set publishes s unless run has been superseded.
func (p *Poller) set(run uint64, s Snapshot) Snapshot {
	p.mu.Lock()
	if run != p.run {
		p.mu.Unlock()
		return s
	}
	p.snap = s
	p.mu.Unlock()
	if p.opts.OnChange != nil {
		p.opts.OnChange(s)
	}
	return s
}

// Generate uploads, submits and polls until the job resolves or fails. A
// non-nil error means ctx ended first or a later call superseded this one;
// the snapshot then holds the last state reached.
func (p *Poller) Generate(ctx context.Context, in Input) (Snapshot, error) {
	style := strings.TrimSpace(in.StyleID)
	if style == "" || (in.Body == nil && strings.TrimSpace(in.ImageURL) == "") {
		return p.Snapshot(), ErrNoInput
	}

	ctx, run, end := p.begin(ctx)
	defer end()

	p.set(run, Snapshot{State: StateUploading})
	imageURL := strings.TrimSpace(in.ImageURL)
	if in.Body != nil {
		uploaded, err := p.backend.Upload(ctx, in.Name, in.Body)
		if err != nil {
			if ctx.Err() != nil {
				return p.Snapshot(), ctx.Err()
			}
			return p.set(run, Snapshot{State: StateFailed, Message: messageOf(err)}), nil
		}
		imageURL = uploaded
	}

	jobID, err := p.backend.Submit(ctx, imageURL, style)
	if err != nil {
		if ctx.Err() != nil {
			return p.Snapshot(), ctx.Err()
		}
		return p.set(run, Snapshot{State: StateFailed, Message: messageOf(err)}), nil
	}
	return p.watch(ctx, run, jobID)
}

// Watch enters submitted for jobID and polls until a terminal state, the
// attempt budget or the deadline is reached. Polling for a previous job on
// the same Poller stops first.
func (p *Poller) Watch(ctx context.Context, jobID string) (Snapshot, error) {
	ctx, run, end := p.begin(ctx)
	defer end()
	return p.watch(ctx, run, jobID)
}

func (p *Poller) watch(ctx context.Context, run uint64, jobID string) (Snapshot, error) {
	p.set(run, Snapshot{State: StateSubmitted, JobID: jobID})

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()
	deadline := time.NewTimer(p.opts.Deadline)
	defer deadline.Stop()

	p.set(run, Snapshot{State: StatePolling, JobID: jobID})
	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return p.Snapshot(), ctx.Err()
		case <-deadline.C:
			return p.set(run, Snapshot{State: StateFailed, JobID: jobID, Message: MsgTimeout}), nil
		case <-ticker.C:
		}

		job, err := p.backend.Job(ctx, jobID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return p.Snapshot(), ctx.Err()
			}
			p.opts.Logger.Warn().Err(err).Str("job_id", jobID).Int("attempt", attempt).Msg("poller: status fetch failed")
		case job.Status == domain.JobStatusDone:
			var result string
			if job.ResultURL != nil {
				result = *job.ResultURL
			}
			return p.set(run, Snapshot{State: StateResolved, JobID: jobID, ResultURL: result}), nil
		case job.Status == domain.JobStatusFailed:
			return p.set(run, Snapshot{State: StateFailed, JobID: jobID, Message: MsgGenerationFailed}), nil
		}

		if attempt >= p.opts.MaxAttempts {
			return p.set(run, Snapshot{State: StateFailed, JobID: jobID, Message: MsgTimeout}), nil
		}
	}
}

func messageOf(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return MsgFallback
}
