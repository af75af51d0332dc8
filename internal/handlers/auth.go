package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	applog "github.com/natnael6825/ecctest/internal/log"
	"github.com/natnael6825/ecctest/internal/services"
	"github.com/natnael6825/ecctest/internal/session"
	"github.com/natnael6825/ecctest/internal/validate"
)

const sessionCookie = "token"

type loginResponse struct {
	Token     string `json:"token"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	ExpiresAt string `json:"expires_at"`
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var in validate.Credentials
	if err := readJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if errs := validate.Login(in.Email, in.Password); len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	ctx := r.Context()
	if err := a.lockout.Check(ctx, in.Email); err != nil {
		if errors.Is(err, session.ErrLocked) {
			applog.Security(r, in.Email, "login_while_locked", nil)
			writeUpstreamError(w, err, 0)
			return
		}
		applog.Error(r, in.Email, "lockout_check", err, nil)
	}

	res, err := a.admin.Login(ctx, in.Email, in.Password)
	if err != nil {
		var ue *services.UpstreamError
		if !errors.As(err, &ue) || ue.Status >= 500 || ue.Status == http.StatusTooManyRequests {
			writeUpstreamError(w, err, 0)
			return
		}
		a.loginFailed(w, r, in.Email, ue.Body)
		return
	}

	if err := a.lockout.Reset(ctx, in.Email); err != nil {
		applog.Error(r, in.Email, "lockout_reset", err, nil)
	}
	token, claims, err := a.issuer.Issue(res.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal")
		return
	}
	sess := session.Session{Email: res.Email, Name: res.Name, UpstreamToken: res.Token}
	if err := a.sessions.Save(ctx, claims.ID, sess, a.issuer.TTL()); err != nil {
		applog.Error(r, res.Email, "session_save", err, nil)
		writeError(w, http.StatusServiceUnavailable, "session_store_unavailable")
		return
	}
	expires := claims.ExpiresAt.Time
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	applog.Audit(r, res.Email, "login", nil)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		Name:      res.Name,
		Email:     res.Email,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
	})
}

func (a *API) loginFailed(w http.ResponseWriter, r *http.Request, email, reason string) {
	n, err := a.lockout.Fail(r.Context(), email)
	if errors.Is(err, session.ErrLocked) {
		applog.Security(r, email, "account_locked", map[string]any{"attempt": n})
		writeUpstreamError(w, err, 0)
		return
	}
	if err != nil {
		applog.Error(r, email, "lockout_fail", err, nil)
	}
	applog.Security(r, email, "login_failed", map[string]any{"attempt": n, "reason": reason})
	writeJSON(w, http.StatusUnauthorized, map[string]any{
		"error":   "invalid_credentials",
		"message": fmt.Sprintf("Invalid credentials. Attempt %d/%d", n, a.lockout.Attempts()),
		"attempt": n,
	})
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if raw := bearerOrCookie(r); raw != "" {
		if claims, err := a.issuer.Verify(raw); err == nil {
			if err := a.sessions.Delete(r.Context(), claims.ID); err != nil {
				applog.Error(r, claims.Subject, "session_delete", err, nil)
			}
			applog.Audit(r, claims.Subject, "logout", nil)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func bearerOrCookie(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// RequireSession rejects requests without a live session and exposes the
// session to downstream handlers.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerOrCookie(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		claims, err := a.issuer.Verify(raw)
		if err != nil {
			applog.Security(r, "", "invalid_token", nil)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sess, err := a.sessions.Load(r.Context(), claims.ID)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				applog.Error(r, claims.Subject, "session_load", err, nil)
			}
			writeError(w, http.StatusUnauthorized, "session expired")
			return
		}
		ctx := session.WithCurrent(r.Context(), session.Current{ID: claims.ID, Session: sess})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
