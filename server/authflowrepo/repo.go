// Package authflowrepo stores the short-lived state of an in-flight federated
// sign-in: the CSRF state parameter, PKCE verifier and nonce.
package authflowrepo

import "time"

type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	Get(state string) (*AuthFlowState, error)
	Delete(state string) error
}
