package server

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/mindwell-app/mindwell-server/auth"
	"github.com/mindwell-app/mindwell-server/server/authflowrepo"
	"github.com/mindwell-app/mindwell-server/users"
)

// GoogleSignInHandler starts the Google sign-in flow: it stashes the CSRF
// state, PKCE verifier and nonce, then redirects to Google's consent page.
func (s *Server) GoogleSignInHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		oidcConfig, err := s.getGoogleOidc(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("google sign-in unavailable")
			writeJSONError(w, http.StatusServiceUnavailable, "Google sign-in is not available")
			return
		}

		state := generateRandomString(32)
		codeVerifier := generateRandomString(32)
		nonce := generateRandomString(32)

		if err := s.authState.Upsert(state, &authflowrepo.AuthFlowState{
			CodeVerifier: codeVerifier,
			Nonce:        nonce,
			ReturnURL:    r.URL.Query().Get("callbackUrl"),
			CreatedAt:    time.Now(),
		}); err != nil {
			log.Error().Err(err).Msg("failed to store auth flow state")
			writeJSONError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		authURL := oidcConfig.OAuth2Config.AuthCodeURL(state,
			oauth2.SetAuthURLParam("code_challenge", generateCodeChallenge(codeVerifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
			oauth2.SetAuthURLParam("nonce", nonce),
		)
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// GoogleCallbackHandler completes the flow: exchanges the code, verifies the
// ID token and nonce, finds or creates the account, and signs the user in.
// Accounts created here carry no password hash.
func (s *Server) GoogleCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// r.FormValue works for both query params and POST form data
		state := r.FormValue("state")
		code := r.FormValue("code")
		if errorParam := r.FormValue("error"); errorParam != "" {
			http.Error(w, "Authorization failed: "+errorParam, http.StatusBadRequest)
			return
		}
		if code == "" || state == "" {
			http.Error(w, "Missing code or state parameter", http.StatusBadRequest)
			return
		}

		authState, err := s.authState.Get(state)
		if err != nil || authState == nil {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}
		// Clean up state after use
		if err := s.authState.Delete(state); err != nil {
			http.Error(w, "Invalid state parameter", http.StatusInternalServerError)
			return
		}

		oidcConfig, err := s.getGoogleOidc(r.Context())
		if err != nil {
			http.Error(w, "Google sign-in is not available", http.StatusServiceUnavailable)
			return
		}

		oauth2Token, err := oidcConfig.OAuth2Config.Exchange(
			r.Context(),
			code,
			oauth2.SetAuthURLParam("code_verifier", authState.CodeVerifier),
		)
		if err != nil {
			log.Error().Err(err).Msg("token exchange failed")
			http.Error(w, "Token exchange failed", http.StatusInternalServerError)
			return
		}

		rawIDToken, ok := oauth2Token.Extra("id_token").(string)
		if !ok {
			http.Error(w, "No ID token in response", http.StatusInternalServerError)
			return
		}

		idToken, err := oidcConfig.OidcVerifier.Verify(r.Context(), rawIDToken)
		if err != nil {
			log.Error().Err(err).Msg("id token verification failed")
			http.Error(w, "ID token verification failed", http.StatusInternalServerError)
			return
		}

		var claims struct {
			Nonce         string `json:"nonce"`
			Sub           string `json:"sub"`
			Email         string `json:"email"`
			EmailVerified bool   `json:"email_verified"`
			Name          string `json:"name"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "Failed to extract claims", http.StatusInternalServerError)
			return
		}

		// Validate nonce to prevent replay attacks
		if claims.Nonce != authState.Nonce {
			http.Error(w, "Invalid nonce", http.StatusUnauthorized)
			return
		}

		user, err := s.findOrCreateGoogleUser(claims.Email, claims.Name, claims.EmailVerified)
		if err != nil {
			log.Error().Err(err).Msg("google account provisioning failed")
			http.Error(w, "Sign-in failed", http.StatusInternalServerError)
			return
		}

		s.signIn(w, r, &auth.Identity{
			ID:              user.ID,
			DisplayName:     user.DisplayName,
			EmailVerifiedAt: user.EmailVerifiedAt,
			PhoneVerifiedAt: user.PhoneVerifiedAt,
		})

		returnURL := authState.ReturnURL
		if returnURL == "" {
			returnURL = RouteHome
		}
		http.Redirect(w, r, returnURL, http.StatusFound)
	}
}

func (s *Server) findOrCreateGoogleUser(email, name string, emailVerified bool) (*users.User, error) {
	email = users.NormalizeEmail(email)
	if email == "" {
		return nil, errors.New("[Server findOrCreateGoogleUser] no email claim")
	}

	user, err := s.users.GetByEmail(email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, users.ErrNotFound) {
		return nil, errors.Wrap(err, "[Server findOrCreateGoogleUser] GetByEmail")
	}

	user = &users.User{
		ID:          uuid.New().String(),
		Email:       email,
		DisplayName: name,
		CreatedAt:   time.Now(),
	}
	if emailVerified {
		now := time.Now()
		user.EmailVerifiedAt = &now
	}
	if err := s.users.Upsert(user); err != nil {
		return nil, errors.Wrap(err, "[Server findOrCreateGoogleUser] Upsert")
	}
	return user, nil
}
