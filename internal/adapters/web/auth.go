package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"efakture/internal/core"
	"efakture/internal/session"

	"github.com/golang-jwt/jwt/v5"
)

const sessionCookieName = "auth_token"

type sessionKey struct{}

// sessionFromContext returns the session stored in ctx, or nil.
func sessionFromContext(ctx context.Context) *session.Session {
	v, _ := ctx.Value(sessionKey{}).(*session.Session)
	return v
}

// jwtClaims is the signed cookie payload. It only references the server-side
// session; the backend token never leaves the server.
type jwtClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

var errNoSession = errors.New("no session")

// issueSessionCookie signs a cookie for sess that expires with it.
func (h *Handler) issueSessionCookie(w http.ResponseWriter, sess *session.Session) error {
	claims := &jwtClaims{
		SessionID: sess.ID,
		Role:      string(sess.User.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(h.jwtSecret))
	if err != nil {
		return fmt.Errorf("sign session token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.ExpiresAt,
	})
	return nil
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// loadSession verifies the session cookie and loads the session it names.
func (h *Handler) loadSession(r *http.Request) (*session.Session, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, errNoSession
	}

	claims := &jwtClaims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid || claims.SessionID == "" {
		return nil, errNoSession
	}

	sess, err := h.svc.Session(r.Context(), claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, errNoSession
		}
		return nil, err
	}
	return sess, nil
}

// RequireAuth is chi middleware for JSON routes. It loads the session named by
// the auth_token cookie into the request context and returns 401 JSON when
// there is none.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.loadSession(r)
		if errors.Is(err, errNoSession) {
			h.clearSessionCookie(w)
			writeError(w, r, "authentication required", "UNAUTHORIZED", http.StatusUnauthorized)
			return
		}
		if err != nil {
			writeError(w, r, "session store unavailable", "INTERNAL_ERROR", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// RequireAuthBrowser is the page-route variant of RequireAuth: it redirects to
// /login instead of answering 401.
func (h *Handler) RequireAuthBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.loadSession(r)
		if err != nil {
			if !errors.Is(err, errNoSession) {
				http.Error(w, "Session store unavailable", http.StatusInternalServerError)
				return
			}
			h.clearSessionCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// RequireAdmin rejects non-admin sessions with 403. It must run after
// RequireAuth or RequireAuthBrowser.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil || !core.IsAdmin(sess.Actor()) {
			writeError(w, r, "administrator access required", "FORBIDDEN", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdminBrowser is the page-route variant of RequireAdmin.
func (h *Handler) RequireAdminBrowser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFromContext(r.Context())
		if sess == nil || !core.IsAdmin(sess.Actor()) {
			http.Error(w, "Administrator access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
