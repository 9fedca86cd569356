// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/hashicorp/oidcrp/oidc"
)

const (
	// DefaultHashKeyLength is the length of generated HMAC keys.
	DefaultHashKeyLength = 64

	// DefaultBlockKeyLength is the length of generated AES keys (AES-256).
	DefaultBlockKeyLength = 32
)

// ErrInvalidCookie is returned when a cookie is present but can't be decoded:
// it was tampered with, was encoded using other keys, or its signature
// timestamp is too old.
var ErrInvalidCookie = errors.New("invalid cookie")

// ErrEncodeFailed is returned when a value can't be encoded into a cookie,
// typically because it exceeds the cookie size limit.
var ErrEncodeFailed = errors.New("unable to encode cookie")

// Value is the payload of the cookie.  A login-progress cookie carries only
// the LoginAttempt; an authenticated cookie carries only Credentials.
type Value struct {
	*oidc.LoginAttempt
	Credentials oidc.Credentials `json:"credentials,omitempty"`
}

// Authenticated returns true when the value carries credentials.
func (v *Value) Authenticated() bool {
	return v != nil && v.Credentials != nil
}

// Pending returns true when the value carries a login attempt and no
// credentials.
func (v *Value) Pending() bool {
	return v != nil && !v.Authenticated() && v.LoginAttempt != nil
}

// Codec reads and writes the relying party's single cookie.  Values are JSON,
// signed with HMAC-SHA256 and, when a block key is provided, encrypted with
// AES.  A Codec is safe for concurrent use.
type Codec struct {
	name     string
	sc       *securecookie.SecureCookie
	path     string
	domain   string
	secure   bool
	sameSite http.SameSite
	maxAge   int
}

// NewCodec creates a Codec for the named cookie.  The hashKey is required;
// the blockKey is optional and must be 16, 24 or 32 bytes when present.  Use
// GenerateKeys to create random keys.
//
// Supported options:
//   - WithPath
//   - WithDomain
//   - WithSecure
//   - WithSameSite
//   - WithMaxAge
func NewCodec(name string, hashKey, blockKey []byte, opt ...oidc.Option) (*Codec, error) {
	const op = "cookie.NewCodec"
	switch {
	case name == "":
		return nil, fmt.Errorf("%s: missing cookie name: %w", op, oidc.ErrInvalidParameter)
	case len(hashKey) == 0:
		return nil, fmt.Errorf("%s: missing hash key: %w", op, oidc.ErrInvalidParameter)
	}
	switch len(blockKey) {
	case 0, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%s: block key must be 16, 24 or 32 bytes: %w", op, oidc.ErrInvalidParameter)
	}
	if len(blockKey) == 0 {
		blockKey = nil
	}
	opts := getOpts(opt...)

	sc := securecookie.New(hashKey, blockKey)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(opts.withMaxAge)

	return &Codec{
		name:     name,
		sc:       sc,
		path:     opts.withPath,
		domain:   opts.withDomain,
		secure:   opts.withSecure,
		sameSite: opts.withSameSite,
		maxAge:   opts.withMaxAge,
	}, nil
}

// GenerateKeys returns random hash and block keys for NewCodec.
func GenerateKeys() (hashKey, blockKey []byte, err error) {
	const op = "cookie.GenerateKeys"
	hashKey = securecookie.GenerateRandomKey(DefaultHashKeyLength)
	blockKey = securecookie.GenerateRandomKey(DefaultBlockKeyLength)
	if hashKey == nil || blockKey == nil {
		return nil, nil, fmt.Errorf("%s: unable to read random bytes: %w", op, oidc.ErrIDGeneratorFailed)
	}
	return hashKey, blockKey, nil
}

// Name of the cookie.
func (c *Codec) Name() string { return c.name }

// Read decodes the request's cookie.  A missing cookie is ErrNotFound and an
// undecodable one is ErrInvalidCookie.
func (c *Codec) Read(r *http.Request) (*Value, error) {
	const op = "Codec.Read"
	if r == nil {
		return nil, fmt.Errorf("%s: request is nil: %w", op, oidc.ErrNilParameter)
	}
	ck, err := r.Cookie(c.name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, oidc.ErrNotFound)
	}
	var v Value
	if err := c.sc.Decode(c.name, ck.Value, &v); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCookie, err)
	}
	if !v.Authenticated() && !v.Pending() {
		return nil, fmt.Errorf("%s: cookie is empty: %w", op, ErrInvalidCookie)
	}
	return &v, nil
}

// WriteAttempt sets the login-progress cookie, which expires with the
// attempt.  It replaces any existing cookie.
func (c *Codec) WriteAttempt(w http.ResponseWriter, a *oidc.LoginAttempt) error {
	const op = "Codec.WriteAttempt"
	if a == nil {
		return fmt.Errorf("%s: login attempt is nil: %w", op, oidc.ErrNilParameter)
	}
	maxAge := 0
	if !a.Expiration.IsZero() {
		maxAge = int(time.Until(a.Expiration).Seconds())
		if maxAge <= 0 {
			return fmt.Errorf("%s: login attempt is expired: %w", op, oidc.ErrExpiredState)
		}
	}
	if err := c.write(w, &Value{LoginAttempt: a}, maxAge); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WriteSession sets the authenticated cookie carrying the credentials.  It
// replaces the login-progress cookie.
func (c *Codec) WriteSession(w http.ResponseWriter, creds oidc.Credentials) error {
	const op = "Codec.WriteSession"
	ck, err := c.EncodeSession(creds)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	http.SetCookie(w, ck)
	return nil
}

// EncodeSession returns the authenticated cookie for the credentials without
// setting it, so callers can finish other work before committing to it.
// Credentials too large for a cookie fail here.
func (c *Codec) EncodeSession(creds oidc.Credentials) (*http.Cookie, error) {
	const op = "Codec.EncodeSession"
	if creds == nil {
		return nil, fmt.Errorf("%s: credentials are nil: %w", op, oidc.ErrNilParameter)
	}
	encoded, err := c.encode(&Value{Credentials: creds})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.cookie(encoded, c.maxAge), nil
}

// Clear expires the cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie("", -1))
}

func (c *Codec) write(w http.ResponseWriter, v *Value, maxAge int) error {
	encoded, err := c.encode(v)
	if err != nil {
		return err
	}
	http.SetCookie(w, c.cookie(encoded, maxAge))
	return nil
}

func (c *Codec) encode(v *Value) (string, error) {
	encoded, err := c.sc.Encode(c.name, v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}
	return encoded, nil
}

func (c *Codec) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     c.path,
		Domain:   c.domain,
		MaxAge:   maxAge,
		Secure:   c.secure,
		HttpOnly: true,
		SameSite: c.sameSite,
	}
}
