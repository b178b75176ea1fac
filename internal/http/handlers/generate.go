package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"productstudio/internal/domain"
	"productstudio/internal/generation"
)

const maxGenerateBody = 16 << 10

// Generate handles POST /api/generate. A malformed body is submitted as an
// empty request so identity and the rate window are still checked first.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	var req generation.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, maxGenerateBody)).Decode(&req); err != nil {
		req = generation.Request{}
	}

	res, err := a.Generation.Submit(r.Context(), a.currentIdentity(r), req)
	if err != nil {
		code, msg := submitError(err)
		if code == http.StatusInternalServerError {
			a.log(r).Error().Err(err).Msg("generate: submission failed")
		}
		a.error(w, code, msg)
		return
	}
	a.json(w, http.StatusOK, res)
}

func submitError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, msgInvalidRequest
	case errors.Is(err, domain.ErrNoCredit):
		return http.StatusPaymentRequired, msgNoCredit
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
