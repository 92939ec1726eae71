package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
	"finanzas/internal/middleware/security"
	"finanzas/internal/services"
)

const flashCookie = "finanzas_flash"

type userKey struct{}

func withUser(ctx context.Context, u core.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser returns the user set by requireUser.
func currentUser(ctx context.Context) (core.User, bool) {
	u, ok := ctx.Value(userKey{}).(core.User)
	return u, ok
}

// requireUser resolves the session cookie and sends anonymous visitors to
// the login page, remembering where they were going.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var token string
		if c, err := r.Cookie(s.cookieName); err == nil {
			token = c.Value
		}

		user, err := s.accounts.UserForSession(r.Context(), token)
		if errors.Is(err, services.ErrNoSession) {
			if token != "" {
				s.clearSessionCookie(w)
			}
			http.Redirect(w, r, "/login/?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Session lookup failed", log.FieldError, err)
			http.Error(w, "Error interno", http.StatusInternalServerError)
			return
		}

		ctx := withUser(r.Context(), user)
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	}))
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess services.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithFlash sends the browser to target with a one-shot notice.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// popFlash reads and clears the pending notice.
func (s *Server) popFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	msg, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return msg
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
