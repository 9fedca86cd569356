// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials are the claims of the user's access_token.  They're what the
// authenticated cookie carries and what request handlers see as the logged in
// user.
type Credentials map[string]interface{}

// Subject returns the "sub" claim, if present.
func (c Credentials) Subject() string {
	s, _ := c["sub"].(string)
	return s
}

// UserInfo is the set of claims returned by the provider's userinfo endpoint.
type UserInfo map[string]interface{}

// DecodeCredentials decodes the claims of an access_token, which must be a JWT.
//
// The token's signature is NOT verified: the access_token was received
// directly from the provider's token endpoint, and it's never accepted from
// any other input.
func DecodeCredentials(t AccessToken) (Credentials, error) {
	const op = "oidc.DecodeCredentials"
	if t == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingAccessToken)
	}
	claims, err := parseUnverified(string(t))
	if err != nil {
		return nil, fmt.Errorf("%s: access_token is not a JWT: %w: %w", op, ErrInvalidCredentials, err)
	}
	return Credentials(claims), nil
}

// UnmarshalClaims will retrieve the claims from the provided raw JWT token
// without verifying its signature.
func UnmarshalClaims(rawToken string, claims interface{}) error {
	const op = "oidc.UnmarshalClaims"
	if claims == nil {
		return fmt.Errorf("%s: claims interface is nil: %w", op, ErrNilParameter)
	}
	mapClaims, err := parseUnverified(rawToken)
	if err != nil {
		return fmt.Errorf("%s: malformed jwt: %w: %w", op, ErrInvalidParameter, err)
	}
	raw, err := json.Marshal(mapClaims)
	if err != nil {
		return fmt.Errorf("%s: unable to marshal jwt claims: %w", op, err)
	}
	if err := json.Unmarshal(raw, claims); err != nil {
		return fmt.Errorf("%s: unable to unmarshal jwt claims: %w", op, err)
	}
	return nil
}

func parseUnverified(rawToken string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
