package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/auth"
	"github.com/mindwell-app/mindwell-server/users"
)

// userResponse is the public shape of an authenticated account.
type userResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	DisplayName     string     `json:"displayName,omitempty"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	PhoneVerifiedAt *time.Time `json:"phoneVerifiedAt,omitempty"`
}

func userToResponse(u *users.User) userResponse {
	return userResponse{
		ID:              u.ID,
		Email:           u.Email,
		Phone:           u.Phone,
		DisplayName:     u.DisplayName,
		EmailVerifiedAt: u.EmailVerifiedAt,
		PhoneVerifiedAt: u.PhoneVerifiedAt,
	}
}

// RegisterHandler creates a password-backed account and signs the user in.
func (s *Server) RegisterHandler() http.HandlerFunc {
	type registerRequest struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
		Phone       string `json:"phone"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		email := users.NormalizeEmail(req.Email)
		if email == "" || !strings.Contains(email, "@") {
			writeJSONError(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := s.users.GetByEmail(email); err == nil {
			writeJSONError(w, http.StatusConflict, "An account with this email already exists")
			return
		} else if !errors.Is(err, users.ErrNotFound) {
			log.Error().Err(err).Msg("registration lookup failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		hash, err := users.HashPassword(req.Password)
		if err != nil {
			log.Error().Err(err).Msg("password hashing failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		user := &users.User{
			ID:           uuid.New().String(),
			Email:        email,
			Phone:        strings.TrimSpace(req.Phone),
			PasswordHash: &hash,
			DisplayName:  strings.TrimSpace(req.DisplayName),
			CreatedAt:    time.Now(),
		}
		if err := s.users.Upsert(user); err != nil {
			// The email pre-check races with concurrent registrations, and
			// phone collisions are only caught here.
			if errors.Is(err, users.ErrDuplicateIdentifier) {
				writeJSONError(w, http.StatusConflict, "An account with this email or phone already exists")
				return
			}
			log.Error().Err(err).Msg("registration upsert failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		s.signIn(w, r, &auth.Identity{ID: user.ID, DisplayName: user.DisplayName})
		writeJSON(w, http.StatusCreated, map[string]any{"user": userToResponse(user)})
	}
}

// LoginHandler processes a credentials login. Unknown accounts and wrong
// passwords produce byte-identical responses.
func (s *Server) LoginHandler() http.HandlerFunc {
	type loginRequest struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		identifier := req.Identifier
		if identifier == "" {
			identifier = req.Email
		}
		if identifier == "" || req.Password == "" {
			writeJSONError(w, http.StatusBadRequest, "Identifier and password are required")
			return
		}

		identity, err := s.verifier.Authenticate(r.Context(), identifier, req.Password, auth.RequestContext{
			IP:        clientIP(r),
			UserAgent: r.UserAgent(),
		})
		switch {
		case errors.Is(err, auth.ErrRateLimited):
			writeJSONError(w, http.StatusTooManyRequests, "Too many login attempts, please try again later")
			return
		case errors.Is(err, auth.ErrAccountLocked):
			writeJSONError(w, http.StatusUnauthorized, "Account temporarily locked, please try again later")
			return
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSONError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		case err != nil:
			log.Error().Err(err).Msg("login failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		s.signIn(w, r, identity)

		user, err := s.users.GetByID(identity.ID)
		if err != nil {
			log.Error().Err(err).Msg("post-login lookup failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": userToResponse(user)})
	}
}

// signIn issues a session token and sets the cookie.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, identity *auth.Identity) {
	token, err := s.sessions.Issue(identity)
	if err != nil {
		log.Error().Err(err).Msg("session issue failed")
		return
	}
	s.setSessionCookie(w, r, token, int(s.config.GetSessionLifetime().Seconds()))
}

// LogoutHandler clears the session cookie. The token itself stays valid until
// expiry; sessions are stateless.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.clearSessionCookie(w, r)
		w.WriteHeader(http.StatusNoContent)
	}
}

// MeHandler returns the current account, read fresh from the store so
// verification flags don't lag the session snapshot.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(userIDFromContext(r.Context()))
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				// Account deleted since the token was issued.
				s.clearSessionCookie(w, r)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			log.Error().Err(err).Msg("me lookup failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": userToResponse(user)})
	}
}

// HealthHandler reports liveness.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
