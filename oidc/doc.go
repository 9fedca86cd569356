// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package oidc provides the relying party half of the OpenID Connect
authorization code flow for web applications.

A Config describes the client and the provider.  The provider's endpoints are
either discovered or configured manually:

	c, err := oidc.NewConfig(
		clientID,
		oidc.ClientSecret(clientSecret),
		"https://rp.example.com/oidc/callback",
		oidc.WithDiscoveryURL("https://idp.example.com/.well-known/openid-configuration"),
	)

A Provider built from the Config creates authorization URLs for a
LoginAttempt, exchanges the returned authorization code for a Token, and
requests the user's UserInfo:

	p, err := oidc.NewProvider(c)
	defer p.Done()

	a, err := oidc.NewLoginAttempt(oidc.DefaultLoginAttemptExpiry, "/protected", c.RedirectURL(req))
	authURL, err := p.AuthURL(ctx, a)

	// in the callback
	t, err := p.Exchange(ctx, a, req.FormValue("state"), req.FormValue("code"))
	info, err := p.UserInfo(ctx, t)
	creds, err := oidc.DecodeCredentials(t.AccessToken())

The LoginAttempt is stored by the caller between the two requests; see the
cookie package.  A successful login may be persisted using a Store and checked
with a LoginValidator; see the callback package.

Tokens, the client secret and other sensitive values redact themselves when
printed or marshaled to JSON.

TestProvider is a local provider that makes testing relying parties much
easier.
*/
package oidc
