// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// wellKnownSuffix is trimmed from discovery URLs to find the issuer.
const wellKnownSuffix = "/.well-known/openid-configuration"

// Provider provides integration with a provider using the typical
// 3-legged OIDC authorization code flow.  A Provider is immutable once
// created and safe for concurrent use.
type Provider struct {
	config   *Config
	provider *oidc.Provider
	metadata IssuerMetadata
	client   *http.Client

	mu sync.Mutex

	// backgroundCtx is the context used by the provider for background
	// activities like: refreshing JWKs ket sets, refreshing tokens, etc
	backgroundCtx context.Context

	// backgroundCtxCancel is used to cancel any background activities running
	// in spawned go routines.
	backgroundCtxCancel context.CancelFunc
}

// NewProvider creates and initializes a Provider.  When the config has a
// DiscoveryURL, initializing the provider includes making an http request to
// the provider's discovery endpoint; a failed request is returned as an
// ErrDiscovery error.  Otherwise the provider is built from the config's
// manual endpoints without any requests.
//
// See Provider.Done() which must be called to release provider resources.
func NewProvider(c *Config) (*Provider, error) {
	const op = "oidc.NewProvider"
	if c == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: provider config is invalid: %w", op, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	// initializing the Provider with it's background ctx/cancel will
	// allow us to use p.Done() to release any resources when returning errors
	// from this function.
	p := &Provider{
		config:              c,
		backgroundCtx:       ctx,
		backgroundCtxCancel: cancel,
	}

	client, err := c.HTTPClient()
	if err != nil {
		p.Done() // release the backgroundCtxCancel resources
		return nil, fmt.Errorf("%s: unable to create http client: %w", op, err)
	}
	p.client = client
	oidcCtx := HTTPClientContext(p.backgroundCtx, client)

	switch c.DiscoveryURL != "" {
	case true:
		issuer := strings.TrimSuffix(strings.TrimSuffix(c.DiscoveryURL, "/"), wellKnownSuffix)
		provider, err := oidc.NewProvider(oidcCtx, issuer) // makes http req to issuer for discovery
		if err != nil {
			p.Done() // release the backgroundCtxCancel resources
			return nil, fmt.Errorf("%s: unable to discover provider %s: %w: %w", op, issuer, ErrDiscovery, err)
		}
		if err := provider.Claims(&p.metadata); err != nil {
			p.Done()
			return nil, fmt.Errorf("%s: unable to read provider metadata: %w: %w", op, ErrDiscovery, err)
		}
		p.provider = provider
	default:
		p.metadata = IssuerMetadata{
			Issuer:                c.Issuer,
			AuthorizationEndpoint: c.AuthorizationURL,
			TokenEndpoint:         c.TokenURL,
			UserInfoEndpoint:      c.UserInfoURL,
			JWKSURI:               c.JWKSURL,
		}
		algs := []string{string(RS256)}
		if len(c.SupportedSigningAlgs) > 0 {
			algs = algs[:0]
			for _, a := range c.SupportedSigningAlgs {
				algs = append(algs, string(a))
			}
		}
		pc := &oidc.ProviderConfig{
			IssuerURL:   c.Issuer,
			AuthURL:     c.AuthorizationURL,
			TokenURL:    c.TokenURL,
			UserInfoURL: c.UserInfoURL,
			JWKSURL:     c.JWKSURL,
			Algorithms:  algs,
		}
		p.provider = pc.NewProvider(oidcCtx)
	}
	return p, nil
}

// Done with the provider's background resources and must be called for every
// Provider created
func (p *Provider) Done() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.backgroundCtxCancel != nil {
		p.backgroundCtxCancel()
		p.backgroundCtxCancel = nil
	}
}

// Config returns the provider's configuration.
func (p *Provider) Config() *Config { return p.config }

// Metadata returns the provider's endpoints.
func (p *Provider) Metadata() IssuerMetadata { return p.metadata }

func (p *Provider) oauth2Config(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.config.ClientID,
		ClientSecret: string(p.config.ClientSecret),
		RedirectURL:  redirectURL,
		Endpoint:     p.provider.Endpoint(),
		Scopes:       p.config.Scopes(),
	}
}

// AuthURL will generate a URL the caller can use to kick off an OIDC
// authorization code flow with an IdP.  The URL carries response_type=code,
// the client_id, the attempt's redirect_uri and state, the configured scope
// and the attempt's nonce (when it has one).
//
// See NewLoginAttempt() to create a LoginAttempt with a valid state and nonce
// that will uniquely identify the user's authentication attempt throughout
// the flow.
func (p *Provider) AuthURL(ctx context.Context, a *LoginAttempt) (string, error) {
	const op = "Provider.AuthURL"
	switch {
	case a == nil:
		return "", fmt.Errorf("%s: login attempt is nil: %w", op, ErrNilParameter)
	case a.State == "":
		return "", fmt.Errorf("%s: login attempt state is empty: %w", op, ErrInvalidParameter)
	case a.State == a.Nonce:
		return "", fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	case a.RedirectURL == "":
		return "", fmt.Errorf("%s: login attempt redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	var authCodeOpts []oauth2.AuthCodeOption
	if a.Nonce != "" {
		authCodeOpts = append(authCodeOpts, oidc.Nonce(a.Nonce))
	}
	return p.oauth2Config(a.RedirectURL).AuthCodeURL(a.State, authCodeOpts...), nil
}

// Exchange will request a token from the oidc token endpoint, using the
// authorizationCode and authorizationState it received in an earlier
// successful oidc authentication response.
//
// The authorizationState is validated against the LoginAttempt before any
// request is made: a mismatch returns ErrStateMismatch.  The redirect_uri sent
// is the attempt's RedirectURL, which is the one sent to the authorization
// endpoint.
//
// On success, the Token returned will include an AccessToken.  Based on the
// IdP, it may include an IDToken and a RefreshToken.
func (p *Provider) Exchange(ctx context.Context, a *LoginAttempt, authorizationState string, authorizationCode string) (*Tk, error) {
	const op = "Provider.Exchange"
	if p.config == nil {
		return nil, fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	if err := a.Validate(authorizationState); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if authorizationCode == "" {
		return nil, fmt.Errorf("%s: authorization code is empty: %w", op, ErrInvalidParameter)
	}

	oauth2Token, err := p.oauth2Config(a.RedirectURL).Exchange(HTTPClientContext(ctx, p.client), authorizationCode)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to exchange auth code with provider: %w: %w", op, ErrTokenExchange, err)
	}

	idToken, _ := oauth2Token.Extra("id_token").(string)
	t, err := NewToken(IDToken(idToken), oauth2Token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrTokenExchange, err)
	}
	return t, nil
}

// UserInfo gets the UserInfo claims from the provider using the token's
// access_token.
func (p *Provider) UserInfo(ctx context.Context, t Token) (UserInfo, error) {
	const op = "Provider.UserInfo"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	userinfo, err := p.provider.UserInfo(HTTPClientContext(ctx, p.client), t.StaticTokenSource())
	if err != nil {
		return nil, fmt.Errorf("%s: provider UserInfo request failed: %w: %w", op, ErrUserInfoFailed, err)
	}
	claims := UserInfo{}
	if err := userinfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%s: failed to get UserInfo claims: %w: %w", op, ErrUserInfoFailed, err)
	}
	return claims, nil
}
