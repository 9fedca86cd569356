// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cookie

import (
	"net/http"

	"github.com/hashicorp/oidcrp/oidc"
)

// options is the set of available options
type options struct {
	withPath     string
	withDomain   string
	withSecure   bool
	withSameSite http.SameSite
	withMaxAge   int
}

func getDefaults() options {
	return options{
		withPath: "/",
		// Lax is required: the provider's redirect back to the callback is a
		// cross-site top level navigation.
		withSameSite: http.SameSiteLaxMode,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithPath sets the cookie's path. Defaults to "/".
func WithPath(p string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && p != "" {
			o.withPath = p
		}
	}
}

// WithDomain sets the cookie's domain.
func WithDomain(d string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withDomain = d
		}
	}
}

// WithSecure sets the cookie's Secure attribute.
func WithSecure(secure bool) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSecure = secure
		}
	}
}

// WithSameSite sets the cookie's SameSite attribute. Defaults to Lax.
func WithSameSite(s http.SameSite) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withSameSite = s
		}
	}
}

// WithMaxAge sets the authenticated cookie's max age in seconds, which is
// also the oldest signature the codec accepts.  Zero (the default) is a
// browser session cookie.
func WithMaxAge(seconds int) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && seconds >= 0 {
			o.withMaxAge = seconds
		}
	}
}
