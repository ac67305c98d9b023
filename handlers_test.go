package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubCompleter returns a canned reply without network I/O.
type stubCompleter struct {
	reply string
	model string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, prompt, identity string) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	return s.reply, s.model, nil
}

func newTestApp(t *testing.T, completer Completer) *App {
	t.Helper()
	issuer, err := NewTokenIssuer("test-secret", "HS256", time.Hour, 10*time.Minute)
	require.NoError(t, err)
	return &App{
		DB:                NewMemoryDB(),
		Tokens:            issuer,
		States:            NewStateStore(),
		Providers:         map[string]Provider{},
		Completer:         completer,
		ClientCallbackURL: "nextarget://callback",
		httpLimiter:       NewRateLimiter(1000),
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func registerAndLogin(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	w := doJSON(t, router, "POST", "/auth/register", "", map[string]string{
		"email": email, "password": "Secret123!", "provider": "local",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, router, "POST", "/auth/login", "", map[string]string{
		"email": email, "password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func TestRegisterDuplicateProviderPair(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})
	router := app.Router()

	w := doJSON(t, router, "POST", "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "pw", "provider": "local",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, "POST", "/auth/register", "", map[string]string{
		"email": "dup@example.com", "password": "pw", "provider": "local",
	})
	require.Equal(t, http.StatusConflict, w.Code)
}

// failingCreateDB makes CreateUser fail with a non-duplicate error.
type failingCreateDB struct {
	DB
}

func (failingCreateDB) CreateUser(email, provider string, passwordHash *string) (*User, error) {
	return nil, errors.New("disk I/O error")
}

func TestRegisterStorageFailureIsNotConflict(t *testing.T) {
	app := newTestApp(t, nil)
	app.DB = failingCreateDB{DB: app.DB}
	router := app.Router()

	w := doJSON(t, router, "POST", "/auth/register", "", map[string]string{
		"email": "a@example.com", "password": "Secret123!", "provider": "local",
	})
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	var resp APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "INTERNAL_ERROR", resp.Code)
}

func TestLoginBadPassword(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})
	router := app.Router()
	registerAndLogin(t, router, "user@example.com")

	w := doJSON(t, router, "POST", "/auth/login", "", map[string]string{
		"email": "user@example.com", "password": "wrong",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCompletionEndToEnd(t *testing.T) {
	app := newTestApp(t, &stubCompleter{reply: "Réponse synthétique.", model: "model-test"})
	router := app.Router()
	token := registerAndLogin(t, router, "user@example.com")

	w := doJSON(t, router, "POST", "/ai/completions", token, map[string]string{
		"prompt": "Donne un conseil.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Completion string `json:"completion"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "Réponse synthétique.", resp.Completion)

	// one user row, one assistant row
	user, err := app.DB.GetUserByEmailProvider("user@example.com", "local")
	require.NoError(t, err)
	rows, err := app.DB.ListInteractionsByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "user", rows[0].Role)
	require.Equal(t, "Donne un conseil.", rows[0].Content)
	require.Equal(t, "assistant", rows[1].Role)
	require.Equal(t, "Réponse synthétique.", rows[1].Content)
}

func TestCompletionRequiresAuth(t *testing.T) {
	app := newTestApp(t, &stubCompleter{reply: "x", model: "m"})
	router := app.Router()

	w := doJSON(t, router, "POST", "/ai/completions", "", map[string]string{"prompt": "p"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCompletionErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		err  error
		code int
	}{
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrPromptTooLong, http.StatusBadRequest},
		{ErrUpstreamUnavailable, http.StatusBadGateway},
		{ErrUpstreamStatus, http.StatusBadGateway},
		{ErrUpstreamMalformed, http.StatusBadGateway},
		{ErrNotConfigured, http.StatusInternalServerError},
	} {
		app := newTestApp(t, &stubCompleter{err: tc.err})
		router := app.Router()
		token := registerAndLogin(t, router, "user@example.com")

		w := doJSON(t, router, "POST", "/ai/completions", token, map[string]string{"prompt": "p"})
		require.Equal(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func TestAdviceEndToEnd(t *testing.T) {
	reply := "1. Faire un plan.\n2. Mesurer les progrès.\n3. Ajuster chaque semaine.\n"
	app := newTestApp(t, &stubCompleter{reply: reply, model: "model-test"})
	router := app.Router()
	token := registerAndLogin(t, router, "coach@example.com")

	w := doJSON(t, router, "POST", "/coach/advice", token, map[string]string{
		"goal": "Améliorer productivité",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Advices []AdviceItem `json:"advices"`
		Model   string       `json:"model"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "model-test", resp.Model)
	require.Len(t, resp.Advices, 3)
	require.Equal(t, "Faire un plan.", resp.Advices[0].Text)
	require.Equal(t, "Mesurer les progrès.", resp.Advices[1].Text)
	require.Equal(t, "Ajuster chaque semaine.", resp.Advices[2].Text)
	for _, a := range resp.Advices {
		require.Greater(t, a.Score, 0.0)
	}

	// prompt and raw reply persisted as a pair
	user, err := app.DB.GetUserByEmailProvider("coach@example.com", "local")
	require.NoError(t, err)
	rows, err := app.DB.ListInteractionsByUser(user.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestAdviceTopN(t *testing.T) {
	reply := "1. Un.\n2. Deux.\n3. Trois.\n4. Quatre.\n"
	app := newTestApp(t, &stubCompleter{reply: reply, model: "m"})
	router := app.Router()
	token := registerAndLogin(t, router, "topn@example.com")

	w := doJSON(t, router, "POST", "/coach/advice", token, map[string]interface{}{
		"goal": "g", "top_n": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Advices []AdviceItem `json:"advices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Advices, 2)
	require.Equal(t, "Un.", resp.Advices[0].Text)
}

func TestMe(t *testing.T) {
	app := newTestApp(t, &stubCompleter{})
	router := app.Router()
	token := registerAndLogin(t, router, "me@example.com")

	w := doJSON(t, router, "GET", "/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "me@example.com", resp["email"])
	require.Equal(t, "local", resp["provider"])
}
