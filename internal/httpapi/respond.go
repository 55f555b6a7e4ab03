package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/catalog"
	"royaltyhub.org/internal/docstore"
	"royaltyhub.org/internal/obs"
)

const (
	msgForbidden      = "Forbidden"
	msgNotFound       = "Not found"
	msgConflict       = "Already exists"
	msgBadRequest     = "Invalid request"
	msgInvalidJSON    = "Invalid JSON body"
	msgInternal       = "Internal server error"
	msgTooManyAttempt = "Too many attempts"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, messageResponse{Message: msg})
}

// respondError maps domain errors to status codes. Unexpected errors are
// logged and reported without detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrForbidden):
		respondMessage(w, http.StatusForbidden, msgForbidden)
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownKind),
		errors.Is(err, auth.ErrNotFound),
		errors.Is(err, docstore.ErrNotFound):
		respondMessage(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, auth.ErrConflict), errors.Is(err, docstore.ErrConflict):
		respondMessage(w, http.StatusConflict, msgConflict)
	case errors.Is(err, auth.ErrInvalidInput), errors.Is(err, docstore.ErrInvalidDocument):
		respondMessage(w, http.StatusBadRequest, msgBadRequest)
	default:
		obs.Logger().Error().
			Err(err).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondMessage(w, http.StatusInternalServerError, msgInternal)
	}
}

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	return json.NewDecoder(r.Body).Decode(v)
}
