// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "test-client-secret"
	testAuthCode     = "test-auth-code"
	testCallbackURL  = "https://rp.example.com/callback"
	testXHRURL       = "https://rp.example.com/xhr-callback"
)

// testProviderConfig starts a TestProvider and returns a discovery based
// Config for it.
func testProviderConfig(t *testing.T, opt ...Option) (*TestProvider, *Config) {
	t.Helper()
	tp := StartTestProvider(t, 0)
	tp.SetClientCreds(testClientID, testClientSecret)
	tp.SetExpectedAuthCode(testAuthCode)
	tp.SetAllowedRedirectURIs([]string{testCallbackURL, testXHRURL})

	opts := append([]Option{
		WithDiscoveryURL(tp.Addr() + "/.well-known/openid-configuration"),
		WithProviderCA(tp.CACert()),
		WithXHRCallbackURL(testXHRURL),
	}, opt...)
	c, err := NewConfig(testClientID, testClientSecret, testCallbackURL, opts...)
	require.NoError(t, err)
	return tp, c
}

func TestNewProvider(t *testing.T) {
	t.Parallel()
	t.Run("discovery", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()
		assert.Equal(tp.Metadata(), p.Metadata())
		assert.Equal(c, p.Config())
	})
	t.Run("discovery-with-issuer-url", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t, 0)
		c, err := NewConfig(testClientID, testClientSecret, testCallbackURL,
			WithDiscoveryURL(tp.Addr()), WithProviderCA(tp.CACert()))
		require.NoError(err)
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()
		assert.Equal(tp.Addr(), p.Metadata().Issuer)
	})
	t.Run("manual", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp := StartTestProvider(t, 0)
		c, err := NewConfig(testClientID, testClientSecret, testCallbackURL,
			WithManualEndpoints(tp.Metadata()), WithProviderCA(tp.CACert()),
			WithSupportedSigningAlgs(ES256))
		require.NoError(err)
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()
		assert.Equal(tp.Metadata(), p.Metadata())
	})
	t.Run("nil-config", func(t *testing.T) {
		_, err := NewProvider(nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
	t.Run("invalid-config", func(t *testing.T) {
		_, err := NewProvider(&Config{ClientSecret: "secret", CallbackURL: testCallbackURL, DiscoveryURL: "https://idp.example.com"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfig)
	})
	t.Run("bad-ca", func(t *testing.T) {
		_, c := testProviderConfig(t)
		c.ProviderCA = "not a cert"
		_, err := NewProvider(c)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidCACert)
	})
	t.Run("discovery-failure", func(t *testing.T) {
		tp, c := testProviderConfig(t)
		c.DiscoveryURL = tp.Addr() + "/not-an-issuer"
		_, err := NewProvider(c)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDiscovery)
	})
}

func TestProvider_Done(t *testing.T) {
	t.Parallel()
	_, c := testProviderConfig(t)
	p, err := NewProvider(c)
	require.NoError(t, err)
	p.Done()
	p.Done() // safe to call more than once
	var nilProvider *Provider
	nilProvider.Done()
}

func TestProvider_AuthURL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	_, c := testProviderConfig(t, WithScope("openid email"))
	p, err := NewProvider(c)
	require.NoError(t, err)
	defer p.Done()

	t.Run("valid", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, err := NewLoginAttempt(time.Minute, "/protected", testXHRURL)
		require.NoError(err)
		got, err := p.AuthURL(ctx, a)
		require.NoError(err)

		u, err := url.Parse(got)
		require.NoError(err)
		assert.Equal(p.Metadata().AuthorizationEndpoint, u.Scheme+"://"+u.Host+u.Path)
		q := u.Query()
		assert.Equal("code", q.Get("response_type"))
		assert.Equal(testClientID, q.Get("client_id"))
		assert.Equal(testXHRURL, q.Get("redirect_uri"))
		assert.Equal("openid email", q.Get("scope"))
		assert.Equal(a.State, q.Get("state"))
		assert.Equal(a.Nonce, q.Get("nonce"))
	})
	tests := []struct {
		name      string
		attempt   *LoginAttempt
		wantIsErr error
	}{
		{"nil", nil, ErrNilParameter},
		{"no-state", &LoginAttempt{RedirectURL: testCallbackURL}, ErrInvalidParameter},
		{"state-equals-nonce", &LoginAttempt{State: "s", Nonce: "s", RedirectURL: testCallbackURL}, ErrInvalidParameter},
		{"no-redirect", &LoginAttempt{State: "s", Nonce: "n"}, ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.AuthURL(ctx, tt.attempt)
			require.Error(t, err)
			assert.Truef(t, errors.Is(err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, err)
		})
	}
}

func TestProvider_Exchange(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, c := testProviderConfig(t)
		tp.SetCustomClaims(map[string]interface{}{"groups": []string{"admin"}})
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testXHRURL)
		require.NoError(err)
		tk, err := p.Exchange(ctx, a, a.State, testAuthCode)
		require.NoError(err)
		assert.NotEmpty(tk.AccessToken())
		assert.NotEmpty(tk.IDToken())
		assert.Equal(1, tp.TokenRequests())
		assert.Equal(testXHRURL, tp.LastRedirectURI())

		creds, err := DecodeCredentials(tk.AccessToken())
		require.NoError(err)
		assert.Equal("alice@example.com", creds.Subject())
		assert.Equal([]interface{}{"admin"}, creds["groups"])
	})
	t.Run("state-mismatch-makes-no-request", func(t *testing.T) {
		tp, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(t, err)
		_, err = p.Exchange(ctx, a, "not-the-state", testAuthCode)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStateMismatch)
		assert.Equal(t, 0, tp.TokenRequests())
	})
	t.Run("expired-attempt", func(t *testing.T) {
		tp, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()

		past := func() time.Time { return time.Now().Add(-time.Hour) }
		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL, WithNow(past))
		require.NoError(t, err)
		_, err = p.Exchange(ctx, a, a.State, testAuthCode)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExpiredState)
		assert.Equal(t, 0, tp.TokenRequests())
	})
	t.Run("missing-code", func(t *testing.T) {
		_, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(t, err)
		_, err = p.Exchange(ctx, a, a.State, "")
		assert.ErrorIs(t, err, ErrInvalidParameter)
	})
	t.Run("provider-error", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, c := testProviderConfig(t)
		tp.SetTokenError(&ProviderError{Code: "invalid_grant", Description: "code was already redeemed"})
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(err)
		_, err = p.Exchange(ctx, a, a.State, testAuthCode)
		require.Error(err)
		assert.ErrorIs(err, ErrTokenExchange)
		assert.Equal("code was already redeemed", ErrorDescription(err))
	})
	t.Run("wrong-code", func(t *testing.T) {
		_, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(t, err)
		_, err = p.Exchange(ctx, a, a.State, "bad-code")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenExchange)
		assert.Equal(t, "unexpected auth code", ErrorDescription(err))
	})
}

func TestProvider_UserInfo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		tp, c := testProviderConfig(t)
		tp.SetUserInfoReply(map[string]interface{}{"sub": "alice@example.com", "email": "alice@example.com"})
		p, err := NewProvider(c)
		require.NoError(err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(err)
		tk, err := p.Exchange(ctx, a, a.State, testAuthCode)
		require.NoError(err)
		info, err := p.UserInfo(ctx, tk)
		require.NoError(err)
		assert.Equal(UserInfo{"sub": "alice@example.com", "email": "alice@example.com"}, info)
	})
	t.Run("disabled", func(t *testing.T) {
		tp, c := testProviderConfig(t)
		tp.DisableUserInfo()
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()

		a, err := NewLoginAttempt(time.Minute, "/", testCallbackURL)
		require.NoError(t, err)
		tk, err := p.Exchange(ctx, a, a.State, testAuthCode)
		require.NoError(t, err)
		_, err = p.UserInfo(ctx, tk)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUserInfoFailed)
	})
	t.Run("nil-token", func(t *testing.T) {
		_, c := testProviderConfig(t)
		p, err := NewProvider(c)
		require.NoError(t, err)
		defer p.Done()
		_, err = p.UserInfo(ctx, nil)
		assert.ErrorIs(t, err, ErrNilParameter)
	})
}
