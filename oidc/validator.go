// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "context"

// LoginValidator decides whether an authenticated user may log in.  A login
// is rejected when ValidateLogin returns false or an error.
type LoginValidator interface {
	ValidateLogin(ctx context.Context, c Credentials, u UserInfo) (bool, error)
}

// LoginValidatorFunc adapts a func to the LoginValidator interface.
type LoginValidatorFunc func(ctx context.Context, c Credentials, u UserInfo) (bool, error)

// ValidateLogin implements the LoginValidator interface.
func (f LoginValidatorFunc) ValidateLogin(ctx context.Context, c Credentials, u UserInfo) (bool, error) {
	return f(ctx, c, u)
}

// AllowAllLogins is the LoginValidator used when none is configured. It
// accepts every login.
var AllowAllLogins LoginValidator = LoginValidatorFunc(func(context.Context, Credentials, UserInfo) (bool, error) {
	return true, nil
})
