// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcrp

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/callback"
)

// options is the set of available options
type options struct {
	withStore          oidc.Store
	withLoginValidator oidc.LoginValidator
	withLogger         hclog.Logger
	withErrorResponse  callback.ErrorResponseFunc
	withHashKey        []byte
	withBlockKey       []byte
	withCookieSecure   bool
	withCookieDomain   string
	withCookiePath     string
	withCookieMaxAge   int
	withAttemptTTL     time.Duration
}

func getDefaults() options {
	return options{
		withLoginValidator: oidc.AllowAllLogins,
		withLogger:         hclog.NewNullLogger(),
		withErrorResponse:  callback.DefaultErrorResponse,
		withCookiePath:     "/",
		withAttemptTTL:     oidc.DefaultLoginAttemptExpiry,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithStore persists successful logins.
func WithStore(s oidc.Store) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withStore = s
		}
	}
}

// WithLoginValidator decides whether a login is accepted.  Defaults to
// oidc.AllowAllLogins.
func WithLoginValidator(v oidc.LoginValidator) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && v != nil {
			o.withLoginValidator = v
		}
	}
}

// WithLogger provides an optional logger.  Authentication events are logged
// by a sub-logger named "auth".
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithErrorResponse replaces callback.DefaultErrorResponse.
func WithErrorResponse(fn callback.ErrorResponseFunc) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withErrorResponse = fn
		}
	}
}

// WithCookieKeys provides the cookie's HMAC key and optional AES key.
// Instances sharing keys accept each other's cookies.  Without keys, random
// keys are generated.
func WithCookieKeys(hashKey, blockKey []byte) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withHashKey = hashKey
			o.withBlockKey = blockKey
		}
	}
}

// WithCookieSecure sets the cookie's Secure attribute.
func WithCookieSecure(secure bool) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookieSecure = secure
		}
	}
}

// WithCookieDomain sets the cookie's domain.
func WithCookieDomain(d string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withCookieDomain = d
		}
	}
}

// WithCookiePath sets the cookie's path.  Defaults to "/".
func WithCookiePath(p string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && p != "" {
			o.withCookiePath = p
		}
	}
}

// WithCookieMaxAge sets the authenticated cookie's max age in seconds.
// Defaults to a browser session cookie.
func WithCookieMaxAge(seconds int) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && seconds >= 0 {
			o.withCookieMaxAge = seconds
		}
	}
}

// WithAttemptTTL sets how long a login attempt is valid.
func WithAttemptTTL(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withAttemptTTL = d
		}
	}
}
