// Package credentials stores provider API tokens in the integration_tokens
// table so operators can rotate them without redeploying.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"productstudio/internal/infra"
	"productstudio/internal/sqlinline"
)

const ProviderReplicate = "replicate"

var ErrEmptyToken = errors.New("credentials: token is required")

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Token returns the stored token for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("select %s token: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

func (s *Store) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, provider, token); err != nil {
		return fmt.Errorf("store %s token: %w", provider, err)
	}
	return nil
}

// TokenSource resolves a provider token on every call: the stored value wins,
// fallback (usually from the environment) is used otherwise.
func (s *Store) TokenSource(provider, fallback string) func(context.Context) (string, error) {
	fallback = strings.TrimSpace(fallback)
	return func(ctx context.Context) (string, error) {
		if s == nil {
			return fallback, nil
		}
		token, err := s.Token(ctx, provider)
		if err != nil {
			if fallback != "" {
				return fallback, nil
			}
			return "", err
		}
		if token == "" {
			return fallback, nil
		}
		return token, nil
	}
}
