package domain

import "time"

// Profile holds the credit balance of an account.
type Profile struct {
	ID        string    `json:"id"`
	Credits   int       `json:"credits"`
	CreatedAt time.Time `json:"created_at"`
}

// HasCredit reports whether the balance allows a new job.
func (p Profile) HasCredit() bool {
	return p.Credits > 0
}
