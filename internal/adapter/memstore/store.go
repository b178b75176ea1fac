// Package memstore keeps profiles, jobs and billing events in process memory.
// It satisfies the same repository contracts as the Postgres adapters.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"productstudio/internal/domain"
)

// Store is safe for concurrent use. One mutex serialises every operation, so
// the credit reservation and job insert are a single atomic step.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	profiles map[string]*domain.Profile
	jobs     map[string]*domain.Job
	events   map[string]time.Time
}

func New() *Store {
	return &Store{
		now:      time.Now,
		profiles: make(map[string]*domain.Profile),
		jobs:     make(map[string]*domain.Job),
		events:   make(map[string]time.Time),
	}
}

// SetCredits creates or overwrites a profile balance.
func (s *Store) SetCredits(userID string, credits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.profiles[userID]; ok {
		p.Credits = credits
		return
	}
	s.profiles[userID] = &domain.Profile{ID: userID, Credits: credits, CreatedAt: s.now()}
}

// Jobs returns copies of all jobs ordered by creation.
func (s *Store) Jobs() []domain.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func (s *Store) CreateWithCredit(_ context.Context, nj domain.NewJob) (*domain.Job, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[nj.UserID]
	if !ok || !p.HasCredit() {
		return nil, 0, domain.ErrNoCredit
	}
	p.Credits--
	job := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    nj.UserID,
		ImageURL:  nj.ImageURL,
		StyleID:   nj.StyleID,
		Status:    domain.JobStatusPending,
		CreatedAt: s.now(),
	}
	s.jobs[job.ID] = job
	out := copyJob(job)
	return &out, p.Credits, nil
}

func (s *Store) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := copyJob(j)
	return &out, nil
}

func (s *Store) ClaimPending(_ context.Context) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var next *domain.Job
	for _, j := range s.jobs {
		if j.Status != domain.JobStatusPending {
			continue
		}
		if next == nil || j.CreatedAt.Before(next.CreatedAt) {
			next = j
		}
	}
	if next == nil {
		return nil, domain.ErrNotFound
	}
	next.Status = domain.JobStatusProcessing
	out := copyJob(next)
	return &out, nil
}

func (s *Store) Complete(_ context.Context, jobID, resultURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processingLocked(jobID)
	if err != nil {
		return err
	}
	j.Status = domain.JobStatusDone
	j.ResultURL = &resultURL
	return nil
}

func (s *Store) Fail(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, err := s.processingLocked(jobID)
	if err != nil {
		return err
	}
	j.Status = domain.JobStatusFailed
	if p, ok := s.profiles[j.UserID]; ok {
		p.Credits++
	}
	return nil
}

func (s *Store) processingLocked(jobID string) (*domain.Job, error) {
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if j.Status != domain.JobStatusProcessing {
		return nil, domain.ErrJobFinal
	}
	return j, nil
}

func (s *Store) Ensure(_ context.Context, userID string, signupCredits int) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		p = &domain.Profile{ID: userID, Credits: signupCredits, CreatedAt: s.now()}
		s.profiles[userID] = p
	}
	out := *p
	return &out, nil
}

// profiles adapts Store to domain.ProfileRepository.
type profiles struct{ s *Store }

// Profiles returns the profile repository view of the store.
func (s *Store) Profiles() domain.ProfileRepository { return profiles{s} }

func (p profiles) GetByID(_ context.Context, userID string) (*domain.Profile, error) {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	pr, ok := p.s.profiles[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *pr
	return &out, nil
}

func (p profiles) Ensure(ctx context.Context, userID string, signupCredits int) (*domain.Profile, error) {
	return p.s.Ensure(ctx, userID, signupCredits)
}

func (s *Store) ApplyCredits(_ context.Context, eventID, userID string, credits int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.events[eventID]; seen {
		return 0, domain.ErrDuplicateEvent
	}
	s.events[eventID] = s.now()
	p, ok := s.profiles[userID]
	if !ok {
		p = &domain.Profile{ID: userID, CreatedAt: s.now()}
		s.profiles[userID] = p
	}
	p.Credits += credits
	return p.Credits, nil
}

func copyJob(j *domain.Job) domain.Job {
	out := *j
	if j.ResultURL != nil {
		v := *j.ResultURL
		out.ResultURL = &v
	}
	return out
}

var (
	_ domain.JobRepository     = (*Store)(nil)
	_ domain.BillingRepository = (*Store)(nil)
	_ domain.ProfileRepository = profiles{}
)
