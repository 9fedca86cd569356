// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidcrp

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/callback"
	"github.com/hashicorp/oidcrp/oidc/cookie"
	"github.com/hashicorp/oidcrp/oidc/scheme"
)

// LoggerName is the name of the logger used for authentication events.
const LoggerName = "auth"

// RelyingParty is an OIDC relying party plugged into a chi router: it
// protects routes with Authenticate and serves the provider's callback.
type RelyingParty struct {
	config        *oidc.Config
	provider      *oidc.Provider
	codec         *cookie.Codec
	scheme        *scheme.Scheme
	callback      http.HandlerFunc
	callbackPaths []string
	logger        hclog.Logger
}

// New validates the config and builds a RelyingParty.  An invalid config is
// rejected before any request is made to the provider.  The provider is
// discovered (or configured from its manual endpoints) once; see Done.
//
// Supported options:
//   - WithStore
//   - WithLoginValidator
//   - WithLogger
//   - WithErrorResponse
//   - WithCookieKeys
//   - WithCookieSecure
//   - WithCookieDomain
//   - WithCookiePath
//   - WithCookieMaxAge
//   - WithAttemptTTL
func New(c *oidc.Config, opt ...oidc.Option) (*RelyingParty, error) {
	const op = "oidcrp.New"
	if c == nil {
		return nil, fmt.Errorf("%s: config is nil: %w", op, oidc.ErrNilParameter)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger.Named(LoggerName)

	callbackPaths, err := paths(c.CallbackURL, c.XHRCallbackURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hashKey, blockKey := opts.withHashKey, opts.withBlockKey
	if len(hashKey) == 0 {
		hashKey, blockKey, err = cookie.GenerateKeys()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		logger.Warn("no cookie keys configured, using random keys: sessions won't survive a restart or be shared between instances")
	}
	codec, err := cookie.NewCodec(c.Cookie(), hashKey, blockKey,
		cookie.WithSecure(opts.withCookieSecure),
		cookie.WithDomain(opts.withCookieDomain),
		cookie.WithPath(opts.withCookiePath),
		cookie.WithMaxAge(opts.withCookieMaxAge),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p, err := oidc.NewProvider(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s, err := scheme.New(p, codec,
		scheme.WithLogger(logger),
		scheme.WithAttemptTTL(opts.withAttemptTTL),
	)
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	cbOpts := []oidc.Option{
		callback.WithLogger(logger),
		callback.WithLoginValidator(opts.withLoginValidator),
		callback.WithErrorResponse(opts.withErrorResponse),
	}
	if opts.withStore != nil {
		cbOpts = append(cbOpts, callback.WithStore(opts.withStore))
	}
	cb, err := callback.AuthCode(p, codec, cbOpts...)
	if err != nil {
		p.Done()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	logger.Info("relying party ready", "issuer", p.Metadata().Issuer, "callback_paths", callbackPaths)
	return &RelyingParty{
		config:        c,
		provider:      p,
		codec:         codec,
		scheme:        s,
		callback:      cb,
		callbackPaths: callbackPaths,
		logger:        logger,
	}, nil
}

// paths returns the distinct paths of the callback URLs.
func paths(urls ...string) ([]string, error) {
	var ps []string
	seen := map[string]bool{}
	for _, u := range urls {
		if u == "" {
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("unable to parse callback URL %s: %w: %w", u, oidc.ErrInvalidParameter, err)
		}
		p := parsed.Path
		if p == "" {
			p = "/"
		}
		if !seen[p] {
			seen[p] = true
			ps = append(ps, p)
		}
	}
	return ps, nil
}

// Register adds the callback route(s) to the router.
func (rp *RelyingParty) Register(r chi.Router) {
	for _, p := range rp.callbackPaths {
		r.Get(p, rp.callback)
	}
}

// Authenticate is middleware requiring an authenticated user; see
// scheme.Scheme.Authenticate.  Use scheme.CredentialsFromContext in the
// wrapped handler to get the user's credentials.
func (rp *RelyingParty) Authenticate(next http.Handler) http.Handler {
	return rp.scheme.Authenticate(next)
}

// State returns the request's authentication state.
func (rp *RelyingParty) State(r *http.Request) scheme.AuthState {
	return rp.scheme.State(r)
}

// CallbackPaths returns the paths Register adds routes for.
func (rp *RelyingParty) CallbackPaths() []string {
	return append([]string(nil), rp.callbackPaths...)
}

// Provider returns the relying party's provider.
func (rp *RelyingParty) Provider() *oidc.Provider { return rp.provider }

// Done releases the provider's resources.
func (rp *RelyingParty) Done() {
	rp.provider.Done()
}
