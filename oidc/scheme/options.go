// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scheme

import (
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
)

// options is the set of available options
type options struct {
	withLogger        hclog.Logger
	withAttemptTTL    time.Duration
	withCallbackPaths []string
}

func getDefaults() options {
	return options{
		withLogger:     hclog.NewNullLogger(),
		withAttemptTTL: oidc.DefaultLoginAttemptExpiry,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithAttemptTTL sets how long a login attempt is valid.  Defaults to
// oidc.DefaultLoginAttemptExpiry.
func WithAttemptTTL(d time.Duration) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && d > 0 {
			o.withAttemptTTL = d
		}
	}
}

// WithCallbackPath adds a path which is passed through unauthenticated, in
// addition to the paths of the configured callback URLs.
func WithCallbackPath(p string) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && p != "" {
			o.withCallbackPaths = append(o.withCallbackPaths, p)
		}
	}
}
