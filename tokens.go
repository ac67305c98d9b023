package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess   = "access"
	tokenTypeCallback = "callback"
)

var (
	ErrTokenExpired      = errors.New("token expired")
	ErrTokenMalformed    = errors.New("token malformed")
	ErrTokenBadSignature = errors.New("token signature invalid")
	ErrTokenWrongType    = errors.New("token has wrong type")
)

// TokenClaims is the claim set carried by both token kinds. Type is a
// first-class claim: a valid signature alone is never sufficient for
// acceptance, the type must match the endpoint's expectation.
type TokenClaims struct {
	TokenType string `json:"type"`
	Provider  string `json:"provider,omitempty"`
	Email     string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies access and callback tokens with a single
// symmetric signing secret. Tokens are self-contained; the issuer holds no
// per-token state.
type TokenIssuer struct {
	secret      []byte
	method      jwt.SigningMethod
	accessTTL   time.Duration
	callbackTTL time.Duration
}

func NewTokenIssuer(secret, algorithm string, accessTTL, callbackTTL time.Duration) (*TokenIssuer, error) {
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unsupported signing algorithm: %s", algorithm)
	}
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing algorithm %s requires an asymmetric key, only HMAC is supported", algorithm)
	}
	return &TokenIssuer{
		secret:      []byte(secret),
		method:      method,
		accessTTL:   accessTTL,
		callbackTTL: callbackTTL,
	}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (ti *TokenIssuer) AccessTTL() time.Duration { return ti.accessTTL }

// IssueAccess mints a long-lived bearer token for API calls. ttl overrides
// the configured default when positive.
func (ti *TokenIssuer) IssueAccess(subject string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = ti.accessTTL
	}
	return ti.sign(TokenClaims{
		TokenType: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	})
}

// IssueCallback mints the short-lived hand-off token returned by an OAuth
// redirect. Provider and email ride along so the exchange step can finish
// without a second identity round trip.
func (ti *TokenIssuer) IssueCallback(subject, provider, email string) (string, error) {
	return ti.sign(TokenClaims{
		TokenType: tokenTypeCallback,
		Provider:  provider,
		Email:     email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ti.callbackTTL)),
		},
	})
}

func (ti *TokenIssuer) sign(claims TokenClaims) (string, error) {
	return jwt.NewWithClaims(ti.method, claims).SignedString(ti.secret)
}

// Verify checks signature and expiry and returns the claims. Failures map
// to the sentinel errors above via errors.Is.
func (ti *TokenIssuer) Verify(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{ti.method.Alg()}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	return claims, nil
}

// VerifyAccess is Verify plus the type=access assertion.
func (ti *TokenIssuer) VerifyAccess(token string) (*TokenClaims, error) {
	claims, err := ti.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}

// VerifyCallback is Verify plus the type=callback assertion.
func (ti *TokenIssuer) VerifyCallback(token string) (*TokenClaims, error) {
	claims, err := ti.Verify(token)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeCallback {
		return nil, ErrTokenWrongType
	}
	return claims, nil
}
