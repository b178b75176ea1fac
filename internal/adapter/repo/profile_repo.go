package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"productstudio/internal/domain"
	"productstudio/internal/infra"
	"productstudio/internal/sqlinline"
)

// ProfileRepositoryPG implements domain.ProfileRepository on Postgres.
type ProfileRepositoryPG struct {
	sql infra.SQLExecutor
}

func NewProfileRepository(sql infra.SQLExecutor) *ProfileRepositoryPG {
	return &ProfileRepositoryPG{sql: sql}
}

func (r *ProfileRepositoryPG) GetByID(ctx context.Context, userID string) (*domain.Profile, error) {
	p, err := scanProfile(r.sql.QueryRow(ctx, sqlinline.QSelectProfile, userID))
	if err != nil {
		return nil, fmt.Errorf("select profile: %w", err)
	}
	return p, nil
}

// Ensure creates the profile with signupCredits if it does not exist yet and
// returns the stored row either way.
func (r *ProfileRepositoryPG) Ensure(ctx context.Context, userID string, signupCredits int) (*domain.Profile, error) {
	p, err := scanProfile(r.sql.QueryRow(ctx, sqlinline.QEnsureProfile, userID, signupCredits))
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.ID, &p.Credits, &p.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

var _ domain.ProfileRepository = (*ProfileRepositoryPG)(nil)
