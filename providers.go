package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"github.com/example/nextarget/internal/config"
)

const (
	googleIssuerURL     = "https://accounts.google.com"
	facebookUserInfoURL = "https://graph.facebook.com/me"
)

var (
	ErrExchangeFailed  = errors.New("authorization code exchange failed")
	ErrIdentityInvalid = errors.New("identity verification failed")
)

// Provider abstracts one external identity provider behind the shared flow
// skeleton: build the authorization URL, exchange the code, extract a
// verified identity. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Configured() bool
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identity(ctx context.Context, token *oauth2.Token, nonce string) (*Identity, error)
}

// --- Google (OIDC) ----------------------------------------------------------

type googleProvider struct {
	conf      *oauth2.Config
	issuerURL string

	mu       sync.Mutex
	verifier *oidc.IDTokenVerifier
}

func NewGoogleProvider(creds config.OAuthProvider) Provider {
	return &googleProvider{
		issuerURL: googleIssuerURL,
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
	}
}

func (g *googleProvider) Name() string { return "google" }

func (g *googleProvider) Configured() bool {
	return g.conf.ClientID != "" && g.conf.ClientSecret != "" && g.conf.RedirectURL != ""
}

func (g *googleProvider) AuthCodeURL(state, nonce string) string {
	return g.conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oidc.Nonce(nonce),
	)
}

func (g *googleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return tok, nil
}

// idTokenVerifier builds the OIDC verifier on first use. A discovery
// failure is not cached: the next call retries, so a transient network
// error during one callback cannot wedge the provider for the process
// lifetime.
func (g *googleProvider) idTokenVerifier(ctx context.Context) (*oidc.IDTokenVerifier, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifier == nil {
		provider, err := oidc.NewProvider(ctx, g.issuerURL)
		if err != nil {
			return nil, err
		}
		g.verifier = provider.Verifier(&oidc.Config{ClientID: g.conf.ClientID})
	}
	return g.verifier, nil
}

// Identity verifies the ID token's signature, audience, and nonce against
// Google's published keys, then extracts the stable subject and email.
func (g *googleProvider) Identity(ctx context.Context, token *oauth2.Token, nonce string) (*Identity, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, fmt.Errorf("%w: no id_token in token response", ErrIdentityInvalid)
	}

	verifier, err := g.idTokenVerifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: discovery: %v", ErrIdentityInvalid, err)
	}

	idToken, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityInvalid, err)
	}
	if nonce != "" && idToken.Nonce != nonce {
		return nil, fmt.Errorf("%w: nonce mismatch", ErrIdentityInvalid)
	}

	var claims struct {
		Email string `json:"email"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityInvalid, err)
	}
	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrIdentityInvalid)
	}

	return &Identity{Subject: idToken.Subject, Email: claims.Email}, nil
}

// --- Facebook (plain OAuth2 + Graph API) ------------------------------------

type facebookProvider struct {
	conf   *oauth2.Config
	client *http.Client
}

func NewFacebookProvider(creds config.OAuthProvider) Provider {
	return &facebookProvider{
		conf: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email"},
		},
		client: http.DefaultClient,
	}
}

func (f *facebookProvider) Name() string { return "facebook" }

func (f *facebookProvider) Configured() bool {
	return f.conf.ClientID != "" && f.conf.ClientSecret != "" && f.conf.RedirectURL != ""
}

func (f *facebookProvider) AuthCodeURL(state, _ string) string {
	return f.conf.AuthCodeURL(state)
}

func (f *facebookProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return tok, nil
}

// Identity fetches id and email from the Graph API with the obtained
// access token. Facebook has no ID token, so the user-info call stands in
// for cryptographic verification.
func (f *facebookProvider) Identity(ctx context.Context, token *oauth2.Token, _ string) (*Identity, error) {
	params := url.Values{}
	params.Set("fields", "id,email")
	params.Set("access_token", token.AccessToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, facebookUserInfoURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityInvalid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: userinfo status %d: %s", ErrIdentityInvalid, resp.StatusCode, detail)
	}

	var info struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIdentityInvalid, err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("%w: missing user id", ErrIdentityInvalid)
	}

	return &Identity{Subject: info.ID, Email: info.Email}, nil
}
