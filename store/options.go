// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"time"

	"github.com/hashicorp/oidcrp/oidc"
)

// options is the set of available options
type options struct {
	withRedisURL        string
	withExpiration      time.Duration
	withCleanupInterval time.Duration
}

func getDefaults() options {
	return options{
		withExpiration:      DefaultExpiration,
		withCleanupInterval: DefaultCleanupInterval,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithRedisURL stores logins in Redis, e.g. "redis://localhost:6379/0".
func WithRedisURL(u string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withRedisURL = u
		}
	}
}

// WithExpiration sets how long logins are kept.
func WithExpiration(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withExpiration = d
		}
	}
}

// WithCleanupInterval sets how often the in-memory store purges expired
// logins.
func WithCleanupInterval(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withCleanupInterval = d
		}
	}
}
