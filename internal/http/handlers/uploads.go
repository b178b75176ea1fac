package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"productstudio/internal/storage"
)

const defaultMaxUpload = 10 << 20

// Upload handles POST /api/uploads: one multipart "file" field holding an
// image, stored under the caller's prefix.
func (a *App) Upload(w http.ResponseWriter, r *http.Request) {
	id := a.currentIdentity(r)
	if !id.Authenticated() {
		a.error(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	limit := a.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			a.error(w, http.StatusRequestEntityTooLarge, msgInvalidRequest)
			return
		}
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	defer file.Close()
	if header.Size > limit {
		a.error(w, http.StatusRequestEntityTooLarge, msgInvalidRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if int64(len(data)) > limit {
		a.error(w, http.StatusRequestEntityTooLarge, msgInvalidRequest)
		return
	}
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		a.error(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	key, err := a.Files.Write(r.Context(), storage.UploadKey(id.UserID, header.Filename, a.now()), data)
	if err != nil {
		a.log(r).Error().Err(err).Str("user_id", id.UserID).Msg("uploads: write failed")
		a.error(w, http.StatusInternalServerError, msgInternal)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"url": a.Files.URL(key), "key": key})
}
