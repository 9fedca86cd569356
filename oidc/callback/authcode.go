// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"fmt"
	"net/http"

	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/cookie"
)

// AuthCode creates the handler for the provider's redirect back to the
// relying party's callback URL.  The login attempt is read from the cookie
// and the callback's "state" must match it before the authorization code is
// exchanged.  A successful login replaces the login-progress cookie with the
// authenticated cookie and redirects to the attempt's ReturnTo.
//
// Every failure clears the cookie, is logged and then handed to the
// ErrorResponseFunc; nothing is persisted for a failed login.
//
// Supported options:
//   - WithStore
//   - WithLoginValidator
//   - WithLogger
//   - WithErrorResponse
func AuthCode(p *oidc.Provider, codec *cookie.Codec, opt ...oidc.Option) (http.HandlerFunc, error) {
	const op = "callback.AuthCode"
	switch {
	case p == nil:
		return nil, fmt.Errorf("%s: provider is nil: %w", op, oidc.ErrNilParameter)
	case codec == nil:
		return nil, fmt.Errorf("%s: cookie codec is nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)
	logger := opts.withLogger

	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		// get parameters from either the body or query parameters.
		// FormValue prioritizes body values, if found.
		reqState := req.FormValue("state")

		fail := func(err error) {
			codec.Clear(w)
			args := []interface{}{"tags", []string{"error", "auth"}, "error", err}
			if desc := oidc.ErrorDescription(err); desc != "" {
				args = append(args, "error_description", desc)
			}
			logger.Error("login failed", args...)
			opts.withErrorResponse(reqState, err, w, req)
		}

		v, err := codec.Read(req)
		switch {
		case err != nil:
			fail(fmt.Errorf("%s: %w: %w", op, oidc.ErrMissingLoginAttempt, err))
			return
		case !v.Pending():
			fail(fmt.Errorf("%s: cookie has no login attempt: %w", op, oidc.ErrMissingLoginAttempt))
			return
		}
		attempt := v.LoginAttempt

		if e := req.FormValue("error"); e != "" {
			fail(fmt.Errorf("%s: %w", op, &oidc.ProviderError{
				Code:        e,
				Description: req.FormValue("error_description"),
				URI:         req.FormValue("error_uri"),
			}))
			return
		}

		if err := attempt.Validate(reqState); err != nil {
			fail(fmt.Errorf("%s: %w", op, err))
			return
		}

		t, err := p.Exchange(ctx, attempt, reqState, req.FormValue("code"))
		if err != nil {
			fail(fmt.Errorf("%s: %w", op, err))
			return
		}

		info, err := p.UserInfo(ctx, t)
		if err != nil {
			fail(fmt.Errorf("%s: %w", op, err))
			return
		}

		creds, err := oidc.DecodeCredentials(t.AccessToken())
		if err != nil {
			fail(fmt.Errorf("%s: %w", op, err))
			return
		}

		ok, err := opts.withLoginValidator.ValidateLogin(ctx, creds, info)
		switch {
		case err != nil:
			fail(fmt.Errorf("%s: %w: %w", op, oidc.ErrLoginFailed, err))
			return
		case !ok:
			fail(fmt.Errorf("%s: %w", op, oidc.ErrLoginFailed))
			return
		}

		session, err := codec.EncodeSession(creds)
		if err != nil {
			fail(fmt.Errorf("%s: %w", op, err))
			return
		}

		if opts.withStore != nil {
			if err := opts.withStore.Save(ctx, oidc.LoginEntries(t, info)); err != nil {
				fail(fmt.Errorf("%s: %w: %w", op, oidc.ErrStoreFailed, err))
				return
			}
		}

		http.SetCookie(w, session)
		logger.Debug("login succeeded", "sub", creds.Subject(), "return_to", attempt.ReturnTo)
		http.Redirect(w, req, attempt.ReturnTo, http.StatusFound)
	}, nil
}
