package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"royaltyhub.org/internal/audit"
	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/obs"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (a *API) authenticate(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	ctx := r.Context()

	attemptKey := clientIP(r) + "|" + strings.ToLower(strings.TrimSpace(req.Email))
	if a.opts.Limiter != nil {
		allowed, err := a.opts.Limiter.Allow(ctx, attemptKey)
		if err != nil {
			// Fail open when the limiter backend is unreachable.
			obs.Logger().Warn().Err(err).Msg("login limiter unavailable")
		} else if !allowed {
			obs.SignIn("throttled")
			respondMessage(w, http.StatusTooManyRequests, msgTooManyAttempt)
			return
		}
	}

	res, err := a.opts.Auth.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		obs.SignIn("error")
		respondError(w, r, err)
		return
	}
	if !res.Success {
		obs.SignIn("rejected")
		_ = audit.LogEvent(ctx, "auth.sign_in.rejected", map[string]any{"reason": res.Message})
		writeJSON(w, http.StatusOK, res)
		return
	}

	obs.SignIn("success")
	if a.opts.Limiter != nil {
		if err := a.opts.Limiter.Reset(ctx, attemptKey); err != nil {
			obs.Logger().Warn().Err(err).Msg("reset login attempts")
		}
	}
	_ = audit.LogEvent(ctx, "auth.sign_in", map[string]any{"user_type": res.UserType})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) testToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.opts.Auth.TestToken(credential(r, userTokenParam)))
}

// forgotPassword answers the same way whether or not the address exists.
func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Email) == "" {
		respondMessage(w, http.StatusBadRequest, msgBadRequest)
		return
	}
	ctx := r.Context()
	token, err := a.opts.Auth.ForgotPassword(ctx, req.Email)
	switch {
	case errors.Is(err, auth.ErrNotFound):
	case err != nil:
		respondError(w, r, err)
		return
	default:
		if err := a.opts.Notifier(ctx, req.Email, token); err != nil {
			respondError(w, r, err)
			return
		}
		_ = audit.LogEvent(ctx, "auth.password.reset_requested", nil)
	}
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "If the address is registered, reset instructions have been sent.",
	})
}

func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondMessage(w, http.StatusBadRequest, msgInvalidJSON)
		return
	}
	err := a.opts.Auth.SetNewPassword(r.Context(), req.Token, req.Password)
	switch {
	case err == nil:
		_ = audit.LogEvent(r.Context(), "auth.password.reset", nil)
		writeJSON(w, http.StatusOK, successResponse{Success: true})
	case errors.Is(err, auth.ErrInvalidToken):
		writeJSON(w, http.StatusBadRequest, successResponse{Message: "Reset token is invalid"})
	case errors.Is(err, auth.ErrResetExpired):
		writeJSON(w, http.StatusBadRequest, successResponse{Message: "Reset token has expired"})
	default:
		respondError(w, r, err)
	}
}
