package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"royaltyhub.org/internal/audit"
	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/catalog"
)

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	u, err := a.opts.Auth.User(r.Context(), identity(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// createUser registers an account. Staff only.
func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	if identity(r).Role != auth.RoleInternal {
		respondError(w, r, catalog.ErrForbidden)
		return
	}
	var in auth.NewUser
	if err := decodeJSON(r, &in); err != nil {
		respondMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	u, err := a.opts.Auth.SignUp(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.create", map[string]any{"id": u.ID, "role": auth.Classify(u).String()})
	writeJSON(w, http.StatusCreated, u)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	if identity(r).Role != auth.RoleInternal {
		respondError(w, r, catalog.ErrForbidden)
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.opts.Auth.DeleteUser(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.delete", map[string]any{"id": id})
	w.WriteHeader(http.StatusNoContent)
}
