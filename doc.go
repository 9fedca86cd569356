// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package oidcrp adds OpenID Connect login to a Go http server.
//
// A RelyingParty protects routes with its Authenticate middleware and serves
// the provider's callback on the path of the configured callback URL:
//
//	c, err := oidc.NewConfig(clientID, clientSecret, "https://rp.example.com/oidc/callback",
//		oidc.WithDiscoveryURL("https://idp.example.com"))
//	rp, err := oidcrp.New(c, oidcrp.WithCookieKeys(hashKey, blockKey))
//	defer rp.Done()
//
//	r := chi.NewRouter()
//	rp.Register(r)
//	r.With(rp.Authenticate).Get("/", home)
//
// The login's state lives only in a signed cookie, so any number of
// instances sharing the cookie keys can serve the flow.
//
// See the oidc package for the protocol and the cookie, scheme and callback
// packages for the parts a RelyingParty is built from.
package oidcrp
