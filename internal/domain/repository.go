package domain

import "context"

// JobRepository owns the canonical job records.
type JobRepository interface {
	// CreateWithCredit reserves one credit of the owner and inserts a pending
	// job as a single atomic unit. It returns ErrNoCredit when the profile is
	// missing or its balance is not positive.
	CreateWithCredit(ctx context.Context, job NewJob) (*Job, int, error)
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// ClaimPending moves the oldest pending job to processing. It returns
	// ErrNotFound when the queue is empty.
	ClaimPending(ctx context.Context) (*Job, error)
	Complete(ctx context.Context, jobID, resultURL string) error
	// Fail marks the job failed and refunds the reserved credit.
	Fail(ctx context.Context, jobID string) error
}

// ProfileRepository gives access to credit balances.
type ProfileRepository interface {
	GetByID(ctx context.Context, userID string) (*Profile, error)
	Ensure(ctx context.Context, userID string, signupCredits int) (*Profile, error)
}

// BillingRepository applies payment events idempotently.
type BillingRepository interface {
	// ApplyCredits records the event and adds credits to the user. It returns
	// ErrDuplicateEvent when eventID was already applied.
	ApplyCredits(ctx context.Context, eventID, userID string, credits int) (int, error)
}
