// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/oidcrp/internal/httpclient"
	"github.com/hashicorp/oidcrp/internal/strutils"
)

const (
	// DefaultCookieName is the cookie used for both the login-progress and
	// authenticated cookies when a Config doesn't specify one.
	DefaultCookieName = "hapi-oidc"

	// DefaultScope is the oauth scope requested when a Config doesn't specify
	// one.
	DefaultScope = oidc.ScopeOpenID

	// XRequestedWithHeader and XMLHttpRequest identify requests made by
	// XHR/AJAX clients, which use the Config's XHRCallbackURL.
	XRequestedWithHeader = "X-Requested-With"
	XMLHttpRequest       = "XMLHttpRequest"
)

// ClientSecret is an oauth client secret
type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for an OIDC relying party using the
// authorization code flow.  The provider's endpoints are either discovered via
// DiscoveryURL or specified manually (Issuer, AuthorizationURL, TokenURL,
// UserInfoURL and JWKSURL).  When both are present, discovery is used.
type Config struct {
	// ClientID is the relying party id
	ClientID string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// CallbackURL is the URL the provider redirects to after the user
	// authenticates.  Its path is the route served by the callback handler.
	CallbackURL string

	// XHRCallbackURL is an optional alternate callback URL used when the
	// request carries "X-Requested-With: XMLHttpRequest".
	XHRCallbackURL string

	// DiscoveryURL is the provider's issuer or the full URL of its
	// /.well-known/openid-configuration document.
	DiscoveryURL string

	// Manual endpoint configuration, used when DiscoveryURL is empty.
	Issuer           string
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
	JWKSURL          string

	// CookieName is the name of the login-progress and authenticated cookie.
	// Defaults to DefaultCookieName.
	CookieName string

	// Scope is the space delimited oauth scope sent to the authorization
	// endpoint. Defaults to DefaultScope.
	Scope string

	// SupportedSigningAlgs is the list of signing algorithms the provider
	// uses.  Only used with manual endpoint configuration; defaults to RS256.
	SupportedSigningAlgs []Alg

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string
}

// NewConfig composes a new config for a provider.
//
// Supported options:
//   - WithDiscoveryURL
//   - WithManualEndpoints
//   - WithXHRCallbackURL
//   - WithCookieName
//   - WithScope
//   - WithSupportedSigningAlgs
//   - WithProviderCA
func NewConfig(clientID string, clientSecret ClientSecret, callbackURL string, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		ClientID:             clientID,
		ClientSecret:         clientSecret,
		CallbackURL:          callbackURL,
		XHRCallbackURL:       opts.withXHRCallbackURL,
		DiscoveryURL:         opts.withDiscoveryURL,
		Issuer:               opts.withManual.Issuer,
		AuthorizationURL:     opts.withManual.AuthorizationEndpoint,
		TokenURL:             opts.withManual.TokenEndpoint,
		UserInfoURL:          opts.withManual.UserInfoEndpoint,
		JWKSURL:              opts.withManual.JWKSURI,
		CookieName:           opts.withCookieName,
		Scope:                opts.withScope,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		ProviderCA:           opts.withProviderCA,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the provider configuration.  Every problem found is reported in the
// returned error, which wraps ErrConfig.  It verifies that either a discovery
// URL or the complete set of manual endpoints is present, but it doesn't verify
// the provider is reachable.
func (c *Config) Validate() error {
	const op = "Config.Validate"
	if c == nil {
		return fmt.Errorf("%s: provider config is nil: %w", op, ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientID == "" {
		result = multierror.Append(result, fmt.Errorf("you must provide a client id: %w", ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("you must provide a client secret: %w", ErrInvalidParameter))
	}
	if c.CallbackURL == "" {
		result = multierror.Append(result, fmt.Errorf("you must provide a callback URL: %w", ErrInvalidParameter))
	} else if err := validateURL(c.CallbackURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("callback URL: %w", err))
	}
	if c.XHRCallbackURL != "" {
		if err := validateURL(c.XHRCallbackURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("xhr callback URL: %w", err))
		}
	}
	switch {
	case c.DiscoveryURL != "":
		if err := validateURL(c.DiscoveryURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("discovery URL: %w", err))
		}
	case !c.hasManualEndpoints():
		result = multierror.Append(result, fmt.Errorf("you must provide a discovery URL or valid manual settings (issuer, authorization, token, userinfo, jwks): %w", ErrInvalidParameter))
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("unsupported algorithm %s: %w", a, ErrInvalidParameter))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrConfig, err)
	}
	return nil
}

func (c *Config) hasManualEndpoints() bool {
	for _, v := range []string{c.Issuer, c.AuthorizationURL, c.TokenURL, c.UserInfoURL, c.JWKSURL} {
		if v == "" {
			return false
		}
	}
	return true
}

func validateURL(u string) error {
	parsed, err := url.Parse(u)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", u, ErrInvalidParameter)
	}
	if !strutils.StrListContains([]string{"https", "http"}, parsed.Scheme) || parsed.Host == "" {
		return fmt.Errorf("%s is not an absolute http or https URL: %w", u, ErrInvalidParameter)
	}
	return nil
}

// Cookie returns the name of the cookie used for login attempts and
// authenticated sessions.
func (c *Config) Cookie() string {
	if c.CookieName == "" {
		return DefaultCookieName
	}
	return c.CookieName
}

// Scopes returns the configured scope as a list of individual scopes.
func (c *Config) Scopes() []string {
	scopes := strutils.SplitScope(c.Scope)
	if len(scopes) == 0 {
		return []string{DefaultScope}
	}
	return scopes
}

// CallbackPath returns the path component of the CallbackURL, which is the
// route the callback handler must be registered on.
func (c *Config) CallbackPath() (string, error) {
	const op = "Config.CallbackPath"
	u, err := url.Parse(c.CallbackURL)
	if err != nil {
		return "", fmt.Errorf("%s: unable to parse callback URL: %w", op, err)
	}
	if u.Path == "" {
		return "/", nil
	}
	return u.Path, nil
}

// RedirectURL returns the callback URL the provider should redirect to for
// the request: the XHRCallbackURL for XHR requests (when one is configured),
// otherwise the CallbackURL.
func (c *Config) RedirectURL(r *http.Request) string {
	if IsXHR(r) && c.XHRCallbackURL != "" {
		return c.XHRCallbackURL
	}
	return c.CallbackURL
}

// IsXHR returns true when the request was made by an XHR/AJAX client.
func IsXHR(r *http.Request) bool {
	if r == nil {
		return false
	}
	return r.Header.Get(XRequestedWithHeader) == XMLHttpRequest
}

// HTTPClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HTTPClient() (*http.Client, error) {
	const op = "Config.HTTPClient"
	client, err := httpclient.New(c.ProviderCA)
	if err != nil {
		if errors.Is(err, httpclient.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("%s: could not parse CA PEM value: %w", op, ErrInvalidCACert)
		}
		return nil, fmt.Errorf("%s: could not get an http client: %w", op, err)
	}
	return client, nil
}

// HTTPClientContext is a helper function that returns a new Context that
// carries the provided HTTP client. This method sets the same context key used
// by the github.com/coreos/go-oidc and golang.org/x/oauth2 packages, so the
// returned context works for those packages as well.
func HTTPClientContext(ctx context.Context, client *http.Client) context.Context {
	// simple to implement as a wrapper for the coreos package
	return oidc.ClientContext(ctx, client)
}

// configOptions is the set of available options
type configOptions struct {
	withDiscoveryURL         string
	withManual               IssuerMetadata
	withXHRCallbackURL       string
	withCookieName           string
	withScope                string
	withSupportedSigningAlgs []Alg
	withProviderCA           string
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withCookieName: DefaultCookieName,
		withScope:      DefaultScope,
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithDiscoveryURL provides the provider's issuer or discovery document URL.
func WithDiscoveryURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withDiscoveryURL = u
		}
	}
}

// WithManualEndpoints provides the provider's endpoints, for providers that
// don't support discovery.
func WithManualEndpoints(m IssuerMetadata) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withManual = m
		}
	}
}

// WithXHRCallbackURL provides an optional callback URL for XHR requests.
func WithXHRCallbackURL(u string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withXHRCallbackURL = u
		}
	}
}

// WithCookieName provides an optional cookie name.
func WithCookieName(name string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && name != "" {
			o.withCookieName = name
		}
	}
}

// WithScope provides an optional space delimited scope.
func WithScope(scope string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && scope != "" {
			o.withScope = scope
		}
	}
}

// WithSupportedSigningAlgs provides the provider's signing algorithms for
// manual endpoint configurations.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}
