// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"
)

// Placeholders printed or marshaled in place of secret token material.
const (
	RedactedAccessToken  = "[REDACTED: access_token]"
	RedactedRefreshToken = "[REDACTED: refresh_token]"
	RedactedIDToken      = "[REDACTED: id_token]"
)

// AccessToken is an oauth access_token. It never prints or marshals its
// value; convert it to a string to get at the raw token.
type AccessToken string

func (t AccessToken) String() string               { return RedactedAccessToken }
func (t AccessToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedAccessToken) }

// RefreshToken is an oauth refresh_token, redacted the same way as AccessToken.
type RefreshToken string

func (t RefreshToken) String() string               { return RedactedRefreshToken }
func (t RefreshToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedRefreshToken) }

// IDToken is an oidc id_token, redacted the same way as AccessToken.
type IDToken string

func (t IDToken) String() string               { return RedactedIDToken }
func (t IDToken) MarshalJSON() ([]byte, error) { return json.Marshal(RedactedIDToken) }

// Claims decodes the id_token's claims into claims. The signature is not
// verified, so the result is informational only.
func (t IDToken) Claims(claims interface{}) error {
	const op = "IDToken.Claims"
	switch {
	case t == "":
		return fmt.Errorf("%s: id_token is empty: %w", op, ErrInvalidParameter)
	case claims == nil:
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	return UnmarshalClaims(string(t), claims)
}
