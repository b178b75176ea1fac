package repo

import (
	"context"
	"fmt"

	"productstudio/internal/domain"
	"productstudio/internal/infra"
	"productstudio/internal/sqlinline"
)

// BillingRepositoryPG implements domain.BillingRepository on Postgres.
type BillingRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewBillingRepository(sql infra.SQLExecutor) *BillingRepositoryPG {
	return &BillingRepositoryPG{sql: sql}
}

func (r *BillingRepositoryPG) ApplyCredits(ctx context.Context, eventID, userID string, credits int) (int, error) {
	var balance int
	if err := r.sql.QueryRow(ctx, sqlinline.QApplyBillingCredits, eventID, userID, credits).Scan(&balance); err != nil {
		if infra.IsNoRows(err) {
			return 0, domain.ErrDuplicateEvent
		}
		return 0, fmt.Errorf("apply billing credits: %w", err)
	}
	return balance, nil
}

var _ domain.BillingRepository = (*BillingRepositoryPG)(nil)
