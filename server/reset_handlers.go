package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/mindwell-app/mindwell-server/resettoken"
	"github.com/mindwell-app/mindwell-server/users"
)

// forgotPasswordMessage is returned whether or not the account exists, so the
// endpoint cannot be used to probe for registered addresses.
const forgotPasswordMessage = "If an account exists for that address, a reset link has been sent"

// ForgotPasswordHandler issues a reset token. Delivery is out of band; in
// development the token is logged so the flow can be exercised locally.
func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	type forgotRequest struct {
		Email string `json:"email"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" {
			writeJSONError(w, http.StatusBadRequest, "Email is required")
			return
		}

		token, err := s.reset.Issue(req.Email)
		if err != nil {
			log.Error().Err(err).Msg("reset token issue failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if token != "" && s.env == "DEV" {
			log.Debug().Str("email", users.NormalizeEmail(req.Email)).Str("token", token).Msg("issued reset token")
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": forgotPasswordMessage})
	}
}

// ResetPasswordHandler redeems a reset token and sets the new password.
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	type resetRequest struct {
		Email    string `json:"email"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" || req.Token == "" {
			writeJSONError(w, http.StatusBadRequest, "Email and token are required")
			return
		}
		if len(req.Password) < 6 {
			writeJSONError(w, http.StatusBadRequest, "Password must be at least 6 characters")
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		err := s.reset.Consume(req.Email, req.Token, req.Password)
		switch {
		case errors.Is(err, resettoken.ErrAccountNotFound):
			writeJSONError(w, http.StatusNotFound, "Account not found")
			return
		case errors.Is(err, resettoken.ErrInvalidOrExpired):
			writeJSONError(w, http.StatusBadRequest, "Invalid or expired reset token")
			return
		case err != nil:
			log.Error().Err(err).Msg("reset token consume failed")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset"})
	}
}
