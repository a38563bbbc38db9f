package server

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUserID stores the authenticated user ID
	ContextKeyUserID ContextKey = "user_id"
	// ContextKeyClaims stores the validated session claims
	ContextKeyClaims ContextKey = "claims"
)

// sessionFromRequest validates the session cookie and, when the token has
// entered its refresh window, re-issues it so active users never hit a hard
// expiry. Returns nil claims when the request carries no usable session.
func (s *Server) sessionFromRequest(w http.ResponseWriter, r *http.Request) *sessions.Claims {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	claims, err := s.sessions.Validate(cookie.Value)
	if err != nil {
		return nil
	}

	refreshed, err := s.sessions.Refresh(claims)
	if err != nil {
		log.Warn().Err(err).Msg("session refresh failed")
	} else if refreshed != "" {
		s.setSessionCookie(w, r, refreshed, int(s.config.GetSessionLifetime().Seconds()))
	}

	return claims
}

// RequireSession guards JSON API routes. Requests without a valid session get
// a 401 with a JSON body; the client is expected to handle it, not a browser.
func (s *Server) RequireSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := s.sessionFromRequest(w, r)
			if claims == nil {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID())
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequirePageSession guards server-rendered pages. Unauthenticated page loads
// are redirected to the sign-in page with the original URL as a callback so
// the user lands back where they were heading.
func (s *Server) RequirePageSession() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := s.sessionFromRequest(w, r)
			if claims == nil {
				signIn := s.config.GetSignInPath() + "?callbackUrl=" + url.QueryEscape(r.URL.RequestURI())
				http.Redirect(w, r, signIn, http.StatusFound)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, claims.UserID())
			ctx = context.WithValue(ctx, ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RedirectAuthenticated sends an already signed-in user away from the sign-in
// page to the landing page.
func (s *Server) RedirectAuthenticated() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if claims := s.sessionFromRequest(w, r); claims != nil {
				http.Redirect(w, r, RouteHome, http.StatusFound)
				return
			}
			next(w, r)
		}
	}
}

// userIDFromContext returns the authenticated user ID injected by the guard.
func userIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyUserID).(string)
	return id
}

// claimsFromContext returns the validated session claims injected by the guard.
func claimsFromContext(ctx context.Context) *sessions.Claims {
	claims, _ := ctx.Value(ContextKeyClaims).(*sessions.Claims)
	return claims
}
