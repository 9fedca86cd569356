// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"fmt"
	"time"
)

// DefaultLoginAttemptExpiry is the default lifetime of a LoginAttempt.
const DefaultLoginAttemptExpiry = 10 * time.Minute

// DefaultStateExpirySkew defines a default time skew when checking a
// LoginAttempt's expiration.
const DefaultStateExpirySkew = 1 * time.Second

// LoginAttempt represents one in-flight OIDC authorization code flow for a
// user.  It's carried by the login-progress cookie between the redirect to the
// provider and the provider's callback; there is no server side copy.
//
// State is the opaque value round tripped through the provider and the
// callback must return the same value.  State and Nonce are never equal.
// RedirectURL records the callback URL sent to the provider, so the code
// exchange uses the same value.
type LoginAttempt struct {
	State       string    `json:"state"`
	Nonce       string    `json:"nonce,omitempty"`
	ReturnTo    string    `json:"returnTo"`
	RedirectURL string    `json:"redirectUri"`
	Expiration  time.Time `json:"exp"`
}

// NewLoginAttempt creates a new LoginAttempt with a fresh state and nonce.
// returnTo is where the user is sent once the login succeeds and redirectURL
// is the callback URL the provider will redirect to.
//
// Supported options:
//   - WithNow
func NewLoginAttempt(expireIn time.Duration, returnTo, redirectURL string, opt ...Option) (*LoginAttempt, error) {
	const op = "oidc.NewLoginAttempt"
	if expireIn <= 0 {
		return nil, fmt.Errorf("%s: expireIn not greater than zero: %w", op, ErrInvalidParameter)
	}
	if redirectURL == "" {
		return nil, fmt.Errorf("%s: redirect URL is empty: %w", op, ErrInvalidParameter)
	}
	opts := getLoginAttemptOpts(opt...)
	nonce, err := NewID(WithPrefix("n"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a login attempt's nonce: %w", op, err)
	}
	state, err := NewID(WithPrefix("st"))
	if err != nil {
		return nil, fmt.Errorf("%s: unable to generate a login attempt's state: %w", op, err)
	}
	if returnTo == "" {
		returnTo = "/"
	}
	return &LoginAttempt{
		State:       state,
		Nonce:       nonce,
		ReturnTo:    returnTo,
		RedirectURL: redirectURL,
		Expiration:  opts.withNowFunc().Add(expireIn),
	}, nil
}

// IsExpired returns true if the attempt has expired. Supports the
// WithExpirySkew and WithNow options; if no skew is provided it will use the
// DefaultStateExpirySkew.
func (a *LoginAttempt) IsExpired(opt ...Option) bool {
	if a == nil {
		return true
	}
	if a.Expiration.IsZero() {
		return false
	}
	opts := getLoginAttemptOpts(opt...)
	return a.Expiration.Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// Validate checks the attempt against the state returned by the provider.
// Callers must not exchange the authorization code unless Validate succeeds.
func (a *LoginAttempt) Validate(authorizationState string, opt ...Option) error {
	const op = "LoginAttempt.Validate"
	switch {
	case a == nil:
		return fmt.Errorf("%s: %w", op, ErrMissingLoginAttempt)
	case a.State == "":
		return fmt.Errorf("%s: login attempt has no state: %w", op, ErrMissingLoginAttempt)
	case a.State == a.Nonce:
		return fmt.Errorf("%s: state and nonce cannot be equal: %w", op, ErrInvalidParameter)
	case a.State != authorizationState:
		return fmt.Errorf("%s: %w", op, ErrStateMismatch)
	case a.IsExpired(opt...):
		return fmt.Errorf("%s: login attempt is expired: %w", op, ErrExpiredState)
	}
	return nil
}

// loginAttemptOptions is the set of available options for LoginAttempt
// functions
type loginAttemptOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// loginAttemptDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func loginAttemptDefaults() loginAttemptOptions {
	return loginAttemptOptions{
		withExpirySkew: DefaultStateExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getLoginAttemptOpts gets the defaults and applies the opt overrides passed
// in
func getLoginAttemptOpts(opt ...Option) loginAttemptOptions {
	opts := loginAttemptDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
