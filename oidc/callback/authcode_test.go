// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package callback

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/cookie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client-id"
	testClientSecret = "test-client-secret"
	testAuthCode     = "test-auth-code"
	testCallbackURL  = "https://rp.example.com/callback"
	testXHRURL       = "https://rp.example.com/xhr-callback"
)

// spyStore records every Save.
type spyStore struct {
	mu    sync.Mutex
	saves [][]oidc.Entry
	err   error
}

func (s *spyStore) Save(_ context.Context, entries []oidc.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, entries)
	return s.err
}

func (s *spyStore) Saves() [][]oidc.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// errorCapture is an ErrorResponseFunc which records the error it's given.
type errorCapture struct {
	state string
	err   error
}

func (c *errorCapture) respond(state string, e error, w http.ResponseWriter, req *http.Request) {
	c.state, c.err = state, e
	DefaultErrorResponse(state, e, w, req)
}

type testEnv struct {
	tp       *oidc.TestProvider
	provider *oidc.Provider
	codec    *cookie.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	require := require.New(t)
	tp := oidc.StartTestProvider(t, 0)
	tp.SetClientCreds(testClientID, testClientSecret)
	tp.SetExpectedAuthCode(testAuthCode)
	tp.SetAllowedRedirectURIs([]string{testCallbackURL, testXHRURL})
	tp.SetCustomClaims(map[string]interface{}{"scope": "openid"})

	c, err := oidc.NewConfig(testClientID, testClientSecret, testCallbackURL,
		oidc.WithDiscoveryURL(tp.Addr()),
		oidc.WithProviderCA(tp.CACert()),
		oidc.WithXHRCallbackURL(testXHRURL),
	)
	require.NoError(err)
	p, err := oidc.NewProvider(c)
	require.NoError(err)
	t.Cleanup(p.Done)

	hashKey, blockKey, err := cookie.GenerateKeys()
	require.NoError(err)
	codec, err := cookie.NewCodec(c.Cookie(), hashKey, blockKey)
	require.NoError(err)
	return &testEnv{tp: tp, provider: p, codec: codec}
}

// attemptRequest returns a callback request carrying a login-progress cookie
// for a new attempt.  The query is built by the query func from the
// attempt's state.
func (e *testEnv) attemptRequest(t *testing.T, returnTo, redirectURL string, query func(state string) url.Values) (*http.Request, *oidc.LoginAttempt) {
	t.Helper()
	a, err := oidc.NewLoginAttempt(time.Minute, returnTo, redirectURL)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, e.codec.WriteAttempt(rec, a))

	req := httptest.NewRequest(http.MethodGet, "/callback?"+query(a.State).Encode(), nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return req, a
}

func okQuery(state string) url.Values {
	return url.Values{"state": {state}, "code": {testAuthCode}}
}

func (e *testEnv) session(t *testing.T, rec *httptest.ResponseRecorder) (*cookie.Value, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range rec.Result().Cookies() {
		req.AddCookie(ck)
	}
	return e.codec.Read(req)
}

func TestAuthCode_params(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	_, err := AuthCode(nil, env.codec)
	assert.ErrorIs(t, err, oidc.ErrNilParameter)
	_, err = AuthCode(env.provider, nil)
	assert.ErrorIs(t, err, oidc.ErrNilParameter)
}

func TestAuthCode_success(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	store := &spyStore{}
	h, err := AuthCode(env.provider, env.codec, WithStore(store))
	require.NoError(t, err)

	for i, returnTo := range []string{"/first?x=1", "/second/page"} {
		t.Run(returnTo, func(t *testing.T) {
			assert, require := assert.New(t), require.New(t)
			req, _ := env.attemptRequest(t, returnTo, testCallbackURL, okQuery)
			rec := httptest.NewRecorder()
			h(rec, req)

			require.Equal(http.StatusFound, rec.Code)
			assert.Equal(returnTo, rec.Header().Get("Location"))

			v, err := env.session(t, rec)
			require.NoError(err)
			require.True(v.Authenticated())
			assert.Equal("alice@example.com", v.Credentials.Subject())
			assert.Equal("openid", v.Credentials["scope"])

			saves := store.Saves()
			require.Len(saves, i+1)
			entries := saves[i]
			require.Len(entries, 2)
			at := entries[1].Value.(oidc.TokenResponse).AccessToken
			require.NotEmpty(at)
			assert.Equal(at+"userInfos", entries[0].Key)
			assert.Equal(at+"token", entries[1].Key)
			assert.Equal("alice@example.com", entries[0].Value.(oidc.UserInfo)["sub"])
		})
	}
}

func TestAuthCode_redirectURI(t *testing.T) {
	t.Parallel()
	for _, redirectURL := range []string{testCallbackURL, testXHRURL} {
		t.Run(redirectURL, func(t *testing.T) {
			env := newTestEnv(t)
			h, err := AuthCode(env.provider, env.codec)
			require.NoError(t, err)
			req, _ := env.attemptRequest(t, "/", redirectURL, okQuery)
			rec := httptest.NewRecorder()
			h(rec, req)
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, redirectURL, env.tp.LastRedirectURI())
		})
	}
}

func TestAuthCode_validator(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		validator   oidc.LoginValidator
		wantSession bool
		wantIsErr   error
	}{
		{name: "absent", wantSession: true},
		{name: "allow-all", validator: oidc.AllowAllLogins, wantSession: true},
		{
			name: "rejects",
			validator: oidc.LoginValidatorFunc(func(_ context.Context, c oidc.Credentials, u oidc.UserInfo) (bool, error) {
				return false, nil
			}),
			wantIsErr: oidc.ErrLoginFailed,
		},
		{
			name: "errors",
			validator: oidc.LoginValidatorFunc(func(_ context.Context, c oidc.Credentials, u oidc.UserInfo) (bool, error) {
				return true, errors.New("directory unavailable")
			}),
			wantIsErr: oidc.ErrLoginFailed,
		},
		{
			name: "checks-claims",
			validator: oidc.LoginValidatorFunc(func(_ context.Context, c oidc.Credentials, u oidc.UserInfo) (bool, error) {
				return c.Subject() == "alice@example.com" && u["email"] == "alice@example.com", nil
			}),
			wantSession: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			env := newTestEnv(t)
			store := &spyStore{}
			capture := &errorCapture{}
			opts := []oidc.Option{WithStore(store), WithErrorResponse(capture.respond)}
			if tt.validator != nil {
				opts = append(opts, WithLoginValidator(tt.validator))
			}
			h, err := AuthCode(env.provider, env.codec, opts...)
			require.NoError(err)

			req, a := env.attemptRequest(t, "/protected", testCallbackURL, okQuery)
			rec := httptest.NewRecorder()
			h(rec, req)

			if tt.wantSession {
				require.Equal(http.StatusFound, rec.Code)
				v, err := env.session(t, rec)
				require.NoError(err)
				assert.True(v.Authenticated())
				assert.Len(store.Saves(), 1)
				return
			}
			assert.Equal(http.StatusUnauthorized, rec.Code)
			assert.ErrorIs(capture.err, tt.wantIsErr)
			assert.Equal(a.State, capture.state)
			_, err = env.session(t, rec)
			assert.Error(err)
			assert.Empty(store.Saves())
		})
	}
}

func TestAuthCode_failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name         string
		setup        func(env *testEnv)
		noCookie     bool
		query        func(state string) url.Values
		wantIsErr    error
		wantStatus   int
		wantExchange bool
	}{
		{
			name:       "missing-cookie",
			noCookie:   true,
			query:      okQuery,
			wantIsErr:  oidc.ErrMissingLoginAttempt,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "state-mismatch",
			query: func(string) url.Values {
				return url.Values{"state": {"st_not-the-state"}, "code": {testAuthCode}}
			},
			wantIsErr:  oidc.ErrStateMismatch,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "missing-state",
			query: func(string) url.Values {
				return url.Values{"code": {testAuthCode}}
			},
			wantIsErr:  oidc.ErrStateMismatch,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "provider-error",
			query: func(state string) url.Values {
				return url.Values{"state": {state}, "error": {"access_denied"}, "error_description": {"user cancelled"}}
			},
			wantIsErr:  oidc.ErrProviderError,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name: "token-exchange",
			setup: func(env *testEnv) {
				env.tp.SetTokenError(&oidc.ProviderError{Code: "invalid_grant", Description: "code expired"})
			},
			query:        okQuery,
			wantIsErr:    oidc.ErrTokenExchange,
			wantStatus:   http.StatusUnauthorized,
			wantExchange: true,
		},
		{
			name: "credentials-too-large-for-cookie",
			setup: func(env *testEnv) {
				env.tp.SetCustomClaims(map[string]interface{}{
					"scope":  "openid",
					"groups": strings.Repeat("g", 3000),
				})
			},
			query:        okQuery,
			wantIsErr:    cookie.ErrEncodeFailed,
			wantStatus:   http.StatusInternalServerError,
			wantExchange: true,
		},
		{
			name:         "userinfo",
			setup:        func(env *testEnv) { env.tp.DisableUserInfo() },
			query:        okQuery,
			wantIsErr:    oidc.ErrUserInfoFailed,
			wantStatus:   http.StatusInternalServerError,
			wantExchange: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert, require := assert.New(t), require.New(t)
			env := newTestEnv(t)
			if tt.setup != nil {
				tt.setup(env)
			}
			store := &spyStore{}
			capture := &errorCapture{}
			h, err := AuthCode(env.provider, env.codec, WithStore(store), WithErrorResponse(capture.respond))
			require.NoError(err)

			req, _ := env.attemptRequest(t, "/protected", testCallbackURL, tt.query)
			if tt.noCookie {
				req.Header.Del("Cookie")
			}
			rec := httptest.NewRecorder()
			h(rec, req)

			assert.Equal(tt.wantStatus, rec.Code)
			require.Error(capture.err)
			assert.Truef(errors.Is(capture.err, tt.wantIsErr), "wanted \"%s\" but got \"%s\"", tt.wantIsErr, capture.err)
			assert.Empty(store.Saves())
			if !tt.wantExchange {
				assert.Equal(0, env.tp.TokenRequests())
			}

			// the cookie is cleared
			cookies := rec.Result().Cookies()
			require.Len(cookies, 1)
			assert.Equal(env.codec.Name(), cookies[0].Name)
			assert.Less(cookies[0].MaxAge, 0)
		})
	}
}

func TestAuthCode_authenticatedCookieIsNotAnAttempt(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	capture := &errorCapture{}
	h, err := AuthCode(env.provider, env.codec, WithErrorResponse(capture.respond))
	require.NoError(t, err)

	session := httptest.NewRecorder()
	require.NoError(t, env.codec.WriteSession(session, oidc.Credentials{"sub": "alice"}))
	req := httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", nil)
	for _, ck := range session.Result().Cookies() {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.ErrorIs(t, capture.err, oidc.ErrMissingLoginAttempt)
	assert.Equal(t, 0, env.tp.TokenRequests())
}

func TestAuthCode_storeFailure(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := newTestEnv(t)
	store := &spyStore{err: errors.New("connection refused")}
	capture := &errorCapture{}
	h, err := AuthCode(env.provider, env.codec, WithStore(store), WithErrorResponse(capture.respond))
	require.NoError(err)

	req, _ := env.attemptRequest(t, "/", testCallbackURL, okQuery)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(http.StatusInternalServerError, rec.Code)
	assert.ErrorIs(capture.err, oidc.ErrStoreFailed)
	_, err = env.session(t, rec)
	assert.Error(err)
}

func TestAuthCode_logging(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	env := newTestEnv(t)
	env.tp.SetTokenError(&oidc.ProviderError{Code: "invalid_grant", Description: "code expired"})

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{
		Name:       "auth",
		Output:     &buf,
		JSONFormat: true,
		Level:      hclog.Error,
	})
	h, err := AuthCode(env.provider, env.codec, WithLogger(logger))
	require.NoError(err)

	req, _ := env.attemptRequest(t, "/", testCallbackURL, okQuery)
	h(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(out, `"@module":"auth"`)
	assert.Contains(out, `"tags":["error","auth"]`)
	assert.Contains(out, `"error_description":"code expired"`)
}
