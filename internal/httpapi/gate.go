package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/obs"
)

const (
	applicationTokenParam = "applicationToken"
	userTokenParam        = "token"
	issuancePath          = "/authenticate"

	msgAppTokenMissing  = "Application token is missing"
	msgAppTokenInvalid  = "Application token is invalid"
	msgUserTokenMissing = "Authentication token is missing"
	msgUserTokenInvalid = "Authentication token is invalid"
)

// ApplicationGate rejects requests that do not carry the shared application
// key in the applicationToken query parameter or header.
func ApplicationGate(key string) func(http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := credential(r, applicationTokenParam)
			if supplied == "" {
				reject(w, r, "application", "missing", msgAppTokenMissing)
				return
			}
			if subtle.ConstantTimeCompare([]byte(supplied), expected) != 1 {
				reject(w, r, "application", "invalid", msgAppTokenInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserGate verifies the session token and attaches the decoded identity to
// the request context. Paths under /authenticate pass through untouched.
func UserGate(codec *auth.Codec) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isIssuancePath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			id, err := codec.Verify(credential(r, userTokenParam))
			switch {
			case errors.Is(err, auth.ErrMissingToken):
				reject(w, r, "user", "missing", msgUserTokenMissing)
				return
			case err != nil:
				reject(w, r, "user", "invalid", msgUserTokenInvalid)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
		})
	}
}

// credential reads name from the query string first, then from the headers.
// Header names are matched case-insensitively.
func credential(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(name)); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
		return v
	}
	for k, vals := range r.Header {
		if strings.EqualFold(k, name) && len(vals) > 0 {
			return strings.TrimSpace(vals[0])
		}
	}
	return ""
}

func isIssuancePath(p string) bool {
	return p == issuancePath || strings.HasPrefix(p, issuancePath+"/")
}

func reject(w http.ResponseWriter, r *http.Request, stage, reason, msg string) {
	obs.GateRejected(stage, reason)
	obs.Logger().Debug().
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("stage", stage).
		Str("reason", reason).
		Str("path", r.URL.Path).
		Msg("gate rejected request")
	respondMessage(w, http.StatusUnauthorized, msg)
}

// identity returns the caller decoded by UserGate. Routes behind the gate
// always have one; the zero Identity classifies as unresolved and is denied
// everywhere.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
