package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer("test-secret", "HS256", time.Hour, 10*time.Minute)
	require.NoError(t, err)
	return ti
}

func TestAccessTokenRoundTrip(t *testing.T) {
	ti := newTestIssuer(t)

	token, err := ti.IssueAccess("user-1", 0)
	require.NoError(t, err)

	claims, err := ti.VerifyAccess(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, tokenTypeAccess, claims.TokenType)
}

func TestCallbackTokenRoundTrip(t *testing.T) {
	ti := newTestIssuer(t)

	token, err := ti.IssueCallback("user-2", "google", "u2@example.com")
	require.NoError(t, err)

	claims, err := ti.VerifyCallback(token)
	require.NoError(t, err)
	require.Equal(t, "user-2", claims.Subject)
	require.Equal(t, "google", claims.Provider)
	require.Equal(t, "u2@example.com", claims.Email)
}

func TestTokenTypesNotInterchangeable(t *testing.T) {
	ti := newTestIssuer(t)

	access, err := ti.IssueAccess("user-1", 0)
	require.NoError(t, err)
	callback, err := ti.IssueCallback("user-1", "google", "u@example.com")
	require.NoError(t, err)

	_, err = ti.VerifyCallback(access)
	require.ErrorIs(t, err, ErrTokenWrongType)

	_, err = ti.VerifyAccess(callback)
	require.ErrorIs(t, err, ErrTokenWrongType)
}

func TestTokenExpired(t *testing.T) {
	ti, err := NewTokenIssuer("test-secret", "HS256", time.Hour, -time.Minute)
	require.NoError(t, err)

	token, err := ti.IssueCallback("user-1", "google", "u@example.com")
	require.NoError(t, err)

	_, err = ti.VerifyCallback(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenBadSignature(t *testing.T) {
	ti := newTestIssuer(t)
	other, err := NewTokenIssuer("other-secret", "HS256", time.Hour, 10*time.Minute)
	require.NoError(t, err)

	token, err := other.IssueAccess("user-1", 0)
	require.NoError(t, err)

	_, err = ti.Verify(token)
	require.ErrorIs(t, err, ErrTokenBadSignature)
}

func TestTokenMalformed(t *testing.T) {
	ti := newTestIssuer(t)
	_, err := ti.Verify("not-a-jwt")
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestIssuerRejectsUnknownAlgorithm(t *testing.T) {
	_, err := NewTokenIssuer("s", "none-such", time.Hour, time.Minute)
	require.Error(t, err)

	_, err = NewTokenIssuer("s", "RS256", time.Hour, time.Minute)
	require.Error(t, err, "asymmetric algorithms need a key pair, not a shared secret")
}
