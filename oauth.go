package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
)

const oauthTimeout = 15 * time.Second

// provider returns the registered provider for the {provider} path
// variable, or nil when unknown.
func (a *App) provider(r *http.Request) Provider {
	return a.Providers[mux.Vars(r)["provider"]]
}

// HandleOAuthStart initiates the authorization-code flow: it mints a fresh
// single-use state (and OIDC nonce) and returns the provider authorization
// URL for the client to redirect to. No network I/O happens here.
// GET /auth/{provider}/start?session_nonce=
func (a *App) HandleOAuthStart(w http.ResponseWriter, r *http.Request) {
	p := a.provider(r)
	if p == nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "Unknown OAuth provider")
		return
	}
	if !p.Configured() {
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", p.Name()+" OAuth not configured")
		return
	}

	state, data, err := a.States.Create(r.URL.Query().Get("session_nonce"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create state")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"auth_url": p.AuthCodeURL(state, data.Nonce),
		"state":    state,
	})
}

// HandleOAuthCallback finishes the flow: consume the state, exchange the
// code, verify the identity, resolve the local user, and redirect to the
// client callback scheme with a short-lived callback token in the URL
// fragment. The state is burned before the exchange begins, so a failed
// exchange cannot be retried with the same state.
// GET /auth/{provider}/callback?code=&state=
func (a *App) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	p := a.provider(r)
	if p == nil {
		writeError(w, http.StatusNotFound, "UNKNOWN_PROVIDER", "Unknown OAuth provider")
		return
	}
	if !p.Configured() {
		writeError(w, http.StatusInternalServerError, "NOT_CONFIGURED", p.Name()+" OAuth not configured")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "code and state are required")
		return
	}

	data, ok := a.States.VerifyAndConsume(state)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_STATE", "Invalid or expired state")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), oauthTimeout)
	defer cancel()

	token, err := p.Exchange(ctx, code)
	if err != nil {
		log.Printf("oauth %s: exchange failed: %v", p.Name(), err)
		writeError(w, http.StatusBadGateway, "EXCHANGE_FAILED", "Token exchange failed")
		return
	}

	identity, err := p.Identity(ctx, token, data.Nonce)
	if err != nil {
		log.Printf("oauth %s: identity verification failed: %v", p.Name(), err)
		writeError(w, http.StatusBadRequest, "INVALID_IDENTITY", "Identity verification failed")
		return
	}

	// Providers may withhold email; a deterministic placeholder scoped to
	// provider and subject keeps (email, provider) unique without
	// colliding across real users.
	email := identity.Email
	if email == "" {
		email = fmt.Sprintf("%s_%s@example.local", p.Name(), identity.Subject)
	}

	user, err := a.getOrCreateUser(email, p.Name())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "USER_RESOLUTION_FAILED", "Failed to resolve user")
		return
	}

	callbackToken, err := a.Tokens.IssueCallback(user.ID, p.Name(), user.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}

	// Fragment, not query: fragments are never sent to servers or logged.
	fragment := url.Values{}
	fragment.Set("token", callbackToken)
	fragment.Set("provider", p.Name())
	http.Redirect(w, r, a.ClientCallbackURL+"#"+fragment.Encode(), http.StatusFound)
}

func (a *App) getOrCreateUser(email, provider string) (*User, error) {
	user, err := a.DB.GetUserByEmailProvider(email, provider)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}
	user, err = a.DB.CreateUser(email, provider, nil)
	if errors.Is(err, ErrUserExists) {
		// Lost a create race; the row is there now.
		return a.DB.GetUserByEmailProvider(email, provider)
	}
	return user, err
}

// HandleTokenExchange swaps a callback token for a long-lived access token.
// This is the only path by which a callback token becomes usable; callback
// tokens are never accepted as bearer credentials elsewhere.
// POST /auth/token/exchange {callback_token}
func (a *App) HandleTokenExchange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CallbackToken string `json:"callback_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CallbackToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "callback_token is required")
		return
	}

	claims, err := a.Tokens.VerifyCallback(req.CallbackToken)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid, expired, or wrong-type callback token")
		return
	}

	user, err := a.DB.GetUserByID(claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "User lookup failed")
		return
	}
	if user == nil || !user.Active {
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found or inactive")
		return
	}

	access, err := a.Tokens.IssueAccess(user.ID, 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": access,
		"token_type":   "bearer",
		"expires_in":   int(a.Tokens.AccessTTL().Seconds()),
		"email":        user.Email,
		"provider":     user.Provider,
		"user_id":      user.ID,
	})
}
