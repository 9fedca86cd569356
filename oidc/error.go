// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrNilParameter        = errors.New("nil parameter")
	ErrInvalidCACert       = errors.New("invalid CA certificate")
	ErrConfig              = errors.New("invalid configuration")
	ErrDiscovery           = errors.New("provider discovery failed")
	ErrIDGeneratorFailed   = errors.New("id generation failed")
	ErrMissingLoginAttempt = errors.New("login attempt is missing")
	ErrExpiredState        = errors.New("state is expired")
	ErrStateMismatch       = errors.New("state mismatch")
	ErrProviderError       = errors.New("provider returned an error")
	ErrTokenExchange       = errors.New("token exchange failed")
	ErrMissingAccessToken  = errors.New("access_token is missing")
	ErrUserInfoFailed      = errors.New("user info failed")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrLoginFailed         = errors.New("login failed validation")
	ErrStoreFailed         = errors.New("store failed")
	ErrNotFound            = errors.New("not found")
)

// ProviderError represents an oauth2 error response the provider sent to the
// callback instead of an authorization code. See:
// https://openid.net/specs/openid-connect-core-1_0.html#AuthError
type ProviderError struct {
	Code        string
	Description string
	URI         string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is reports whether target is ErrProviderError.
func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderError
}

// ErrorDescription returns the provider supplied error_description carried by
// err, if there is one.  Both authorization error responses (*ProviderError)
// and token endpoint errors (*oauth2.RetrieveError) are supported.
func ErrorDescription(err error) string {
	if err == nil {
		return ""
	}
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Description
	}
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) {
		if rErr.ErrorDescription != "" {
			return rErr.ErrorDescription
		}
		return rErr.ErrorCode
	}
	return ""
}
