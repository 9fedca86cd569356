// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
)

// options is the set of available options
type options struct {
	withStore          oidc.Store
	withLoginValidator oidc.LoginValidator
	withLogger         hclog.Logger
	withErrorResponse  ErrorResponseFunc
}

func getDefaults() options {
	return options{
		withLoginValidator: oidc.AllowAllLogins,
		withLogger:         hclog.NewNullLogger(),
		withErrorResponse:  DefaultErrorResponse,
	}
}

func getOpts(opt ...oidc.Option) options {
	opts := getDefaults()
	oidc.ApplyOpts(&opts, opt...)
	return opts
}

// WithStore provides an optional Store for successful logins.
func WithStore(s oidc.Store) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok {
			o.withStore = s
		}
	}
}

// WithLoginValidator provides an optional LoginValidator.  Defaults to
// oidc.AllowAllLogins.
func WithLoginValidator(v oidc.LoginValidator) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && v != nil {
			o.withLoginValidator = v
		}
	}
}

// WithLogger provides an optional logger.
func WithLogger(l hclog.Logger) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && l != nil {
			o.withLogger = l
		}
	}
}

// WithErrorResponse provides an optional ErrorResponseFunc.  Defaults to
// DefaultErrorResponse.
func WithErrorResponse(fn ErrorResponseFunc) oidc.Option {
	return func(o interface{}) {
		if o, ok := o.(*options); ok && fn != nil {
			o.withErrorResponse = fn
		}
	}
}
