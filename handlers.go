package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

type creds struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Provider string `json:"provider"`
}

func userPublic(u *User) map[string]interface{} {
	return map[string]interface{}{
		"id":       u.ID,
		"email":    u.Email,
		"provider": u.Provider,
		"active":   u.Active,
	}
}

// HandleRegister creates a local-password user. External-provider users are
// created through the OAuth callback, not here.
// POST /auth/register
func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.Email == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Email is required")
		return
	}

	var hash *string
	if c.Provider == "local" {
		if c.Password == "" {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Password is required")
			return
		}
		h, err := hashPassword(c.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to process password")
			return
		}
		hash = &h
	}

	user, err := a.DB.CreateUser(c.Email, c.Provider, hash)
	if errors.Is(err, ErrUserExists) {
		writeError(w, http.StatusConflict, "USER_EXISTS", "User already exists for this provider")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}
	writeJSON(w, http.StatusCreated, userPublic(user))
}

// HandleLogin authenticates a local-password user and returns an access
// token. Non-local providers must use the OAuth flow.
// POST /auth/login
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c creds
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if c.Provider != "" && c.Provider != "local" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Use the provider flow for non-local login")
		return
	}

	user, err := a.DB.GetUserByEmailProvider(c.Email, "local")
	if err != nil || user == nil || user.PasswordHash == nil || !comparePassword(*user.PasswordHash, c.Password) {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
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
	})
}

// HandleMe returns the authenticated user's public shape.
// GET /users/me
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}
	writeJSON(w, http.StatusOK, userPublic(user))
}
