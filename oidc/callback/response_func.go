// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"errors"
	"net/http"

	"github.com/hashicorp/oidcrp/oidc"
)

// ErrorResponseFunc is used by AuthCode to create a http response when the
// callback fails.
//
// The function receives the state returned as part of the oidc authentication
// response and the error raised while processing the request, unmodified.
// Provider error responses are a *oidc.ProviderError (see
// oidc.ErrorDescription).  The function should use the http.ResponseWriter to
// send back whatever content (headers, html, JSON, etc) it wishes to the
// client that originated the oidc flow.
type ErrorResponseFunc func(state string, e error, w http.ResponseWriter, req *http.Request)

// authFailures are errors caused by the user's login, rather than by the
// relying party or its dependencies.
var authFailures = []error{
	oidc.ErrMissingLoginAttempt,
	oidc.ErrStateMismatch,
	oidc.ErrExpiredState,
	oidc.ErrProviderError,
	oidc.ErrTokenExchange,
	oidc.ErrInvalidCredentials,
	oidc.ErrLoginFailed,
	oidc.ErrInvalidParameter,
}

// StatusCode returns the http status for a callback error: 401 for login
// failures, otherwise 500.
func StatusCode(e error) int {
	for _, target := range authFailures {
		if errors.Is(e, target) {
			return http.StatusUnauthorized
		}
	}
	return http.StatusInternalServerError
}

// DefaultErrorResponse is the ErrorResponseFunc used when none is provided.
// It replies with the status from StatusCode and no details.
func DefaultErrorResponse(_ string, e error, w http.ResponseWriter, _ *http.Request) {
	code := StatusCode(e)
	http.Error(w, http.StatusText(code), code)
}
