// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package scheme

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/cookie"
)

// AuthState is the authentication state of a request, as carried by its
// cookie.
type AuthState int

const (
	// Anonymous requests have no (or an undecodable) cookie.
	Anonymous AuthState = iota

	// LoginPending requests carry a login attempt which hasn't completed.
	LoginPending

	// Authenticated requests carry the user's credentials.
	Authenticated
)

// String returns the name of the state.
func (s AuthState) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case LoginPending:
		return "login-pending"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

type credentialsKey struct{}

// ContextWithCredentials returns a context carrying the credentials.
func ContextWithCredentials(ctx context.Context, c oidc.Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, c)
}

// CredentialsFromContext returns the authenticated user's credentials, which
// Authenticate attaches to the request's context.
func CredentialsFromContext(ctx context.Context) (oidc.Credentials, bool) {
	c, ok := ctx.Value(credentialsKey{}).(oidc.Credentials)
	return c, ok
}

// Scheme protects http handlers, sending anonymous users to the provider to
// log in.  A Scheme is safe for concurrent use.
type Scheme struct {
	provider      *oidc.Provider
	codec         *cookie.Codec
	logger        hclog.Logger
	attemptTTL    time.Duration
	callbackPaths map[string]bool
}

// New creates a Scheme.  The callback paths of the provider's config (both the
// default and XHR callback URLs) are never protected.
//
// Supported options:
//   - WithLogger
//   - WithAttemptTTL
//   - WithCallbackPath
func New(p *oidc.Provider, codec *cookie.Codec, opt ...oidc.Option) (*Scheme, error) {
	const op = "scheme.New"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case codec == nil:
		return nil, fmt.Errorf("%s: cookie codec is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)

	paths := map[string]bool{}
	for _, u := range []string{p.Config().CallbackURL, p.Config().XHRCallbackURL} {
		if u == "" {
			continue
		}
		parsed, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to parse callback URL: %w: %w", op, oidc.ErrInvalidParameter, err)
		}
		switch parsed.Path {
		case "":
			paths["/"] = true
		default:
			paths[parsed.Path] = true
		}
	}
	for _, cp := range opts.withCallbackPaths {
		paths[cp] = true
	}

	return &Scheme{
		provider:      p,
		codec:         codec,
		logger:        opts.withLogger,
		attemptTTL:    opts.withAttemptTTL,
		callbackPaths: paths,
	}, nil
}

// State classifies the request by its cookie.
func (s *Scheme) State(r *http.Request) AuthState {
	v, err := s.codec.Read(r)
	switch {
	case err != nil:
		return Anonymous
	case v.Authenticated():
		return Authenticated
	case v.Pending():
		return LoginPending
	default:
		return Anonymous
	}
}

// Authenticate is middleware that requires an authenticated user.
// Authenticated requests are passed to next with the user's credentials in
// the request context.  Any other request starts a new login: a fresh login
// attempt is stored in the cookie and the user is redirected to the
// provider's authorization endpoint.  Requests for the callback path are
// passed through untouched.
func (s *Scheme) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.callbackPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}
		v, err := s.codec.Read(r)
		if err == nil && v.Authenticated() {
			next.ServeHTTP(w, r.WithContext(ContextWithCredentials(r.Context(), v.Credentials)))
			return
		}
		s.startLogin(w, r)
	})
}

func (s *Scheme) startLogin(w http.ResponseWriter, r *http.Request) {
	const op = "Scheme.startLogin"
	redirectURL := s.provider.Config().RedirectURL(r)
	a, err := oidc.NewLoginAttempt(s.attemptTTL, r.URL.RequestURI(), redirectURL)
	if err != nil {
		s.fail(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	authURL, err := s.provider.AuthURL(r.Context(), a)
	if err != nil {
		s.fail(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	if err := s.codec.WriteAttempt(w, a); err != nil {
		s.fail(w, fmt.Errorf("%s: %w", op, err))
		return
	}
	s.logger.Debug("starting login", "return_to", a.ReturnTo, "redirect_uri", redirectURL, "xhr", oidc.IsXHR(r))
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Scheme) fail(w http.ResponseWriter, err error) {
	s.logger.Error("unable to start login", "tags", []string{"error", "auth"}, "error", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
