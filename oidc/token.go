// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// Token represents the tokens returned by a successful authorization code
// exchange.
type Token interface {
	// AccessToken returns the oauth access_token.
	AccessToken() AccessToken

	// RefreshToken returns the oauth refresh_token, if the provider issued
	// one.
	RefreshToken() RefreshToken

	// IDToken returns the oidc id_token, if the provider issued one.
	IDToken() IDToken

	// TokenType returns the oauth token_type.
	TokenType() string

	// Expiry returns the expiration of the access_token.
	Expiry() time.Time

	// Valid will ensure that the access_token is not empty or expired.
	Valid() bool

	// IsExpired returns true if the token has expired.
	IsExpired(opt ...Option) bool

	// StaticTokenSource returns a TokenSource that always returns the same
	// token, which is used for userinfo requests.
	StaticTokenSource() oauth2.TokenSource

	// Response returns the token as a TokenResponse, suitable for persisting.
	Response() TokenResponse
}

// TokenResponse is the persisted form of a Token.  Unlike Token, it's not
// redacted when marshalled.
type TokenResponse struct {
	AccessToken  string    `json:"access_token" msgpack:"access_token"`
	TokenType    string    `json:"token_type,omitempty" msgpack:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty" msgpack:"refresh_token,omitempty"`
	IDToken      string    `json:"id_token,omitempty" msgpack:"id_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty" msgpack:"expiry,omitempty"`
}

// Tk satisfies the Token interface and represents an oauth2 access_token and
// refresh_token (including the access_token expiry), as well as an optional
// oidc id_token.
type Tk struct {
	idToken IDToken
	*oauth2.Token
}

// ensure that Tk implements the Token interface.
var _ Token = (*Tk)(nil)

// NewToken creates a new Token (*Tk).  The oauth2.Token must contain an
// access_token.  The id_token is optional, since the relying party only
// depends on the access_token.
func NewToken(i IDToken, t *oauth2.Token) (*Tk, error) {
	const op = "oidc.NewToken"
	if t == nil {
		return nil, fmt.Errorf("%s: token is nil: %w", op, ErrNilParameter)
	}
	if t.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	return &Tk{
		idToken: i,
		Token:   t,
	}, nil
}

// AccessToken implements the Token.AccessToken() interface function.
func (t *Tk) AccessToken() AccessToken { return AccessToken(t.Token.AccessToken) }

// RefreshToken implements the Token.RefreshToken() interface function.
func (t *Tk) RefreshToken() RefreshToken { return RefreshToken(t.Token.RefreshToken) }

// IDToken implements the Token.IDToken() interface function.
func (t *Tk) IDToken() IDToken { return t.idToken }

// TokenType implements the Token.TokenType() interface function.
func (t *Tk) TokenType() string { return t.Token.TokenType }

// Expiry implements the Token.Expiry() interface function.
func (t *Tk) Expiry() time.Time { return t.Token.Expiry }

// StaticTokenSource returns a TokenSource that always returns the same token.
func (t *Tk) StaticTokenSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(t.Token)
}

// Response implements the Token.Response() interface function.
func (t *Tk) Response() TokenResponse {
	return TokenResponse{
		AccessToken:  t.Token.AccessToken,
		TokenType:    t.Token.TokenType,
		RefreshToken: t.Token.RefreshToken,
		IDToken:      string(t.idToken),
		Expiry:       t.Token.Expiry,
	}
}

// DefaultTokenExpirySkew defines a time skew when checking a Token's
// expiration.
const DefaultTokenExpirySkew = 10 * time.Second

// IsExpired will return true if the token's access token is expired.  If
// the token has no expiry, it's never expired.  Supports the WithExpirySkew
// option and if none is provided it will use the DefaultTokenExpirySkew.
func (t *Tk) IsExpired(opt ...Option) bool {
	if t == nil || t.Token == nil {
		return true
	}
	if t.Token.Expiry.IsZero() {
		return false
	}
	opts := getTokenOpts(opt...)
	return t.Token.Expiry.Round(0).Before(time.Now().Add(opts.withExpirySkew))
}

// Valid will ensure that the access_token is not empty or expired.
func (t *Tk) Valid() bool {
	if t == nil || t.Token == nil {
		return false
	}
	if t.Token.AccessToken == "" {
		return false
	}
	return !t.IsExpired()
}

// tokenOptions is the set of available options for Token functions
type tokenOptions struct {
	withExpirySkew time.Duration
}

// tokenDefaults is a handy way to get the defaults at runtime and during unit
// tests.
func tokenDefaults() tokenOptions {
	return tokenOptions{
		withExpirySkew: DefaultTokenExpirySkew,
	}
}

// getTokenOpts gets the token defaults and applies the opt overrides passed
// in
func getTokenOpts(opt ...Option) tokenOptions {
	opts := tokenDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
