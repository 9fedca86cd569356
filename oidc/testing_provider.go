// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/stretchr/testify/require"
	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"
)

// TestProvider is a local OIDC provider which makes writing tests for relying
// parties much easier.  It serves discovery, /auth, /token, /userinfo and
// /certs over TLS; see CACert() for the cert needed to trust it.
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	jwks         *jose.JSONWebKeySet
	replySubject string

	mu                  sync.Mutex
	allowedRedirectURIs []string
	replyUserinfo       map[string]interface{}
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	expectedScope       string
	customClaims        map[string]interface{}
	omitIDToken         bool
	disableUserInfo     bool
	tokenError          *ProviderError

	tokenRequests    int
	lastRedirectURI  string
	lastAuthNonce    string
	lastIssuedAccess string

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider.  A port of zero picks
// any free port.  The provider is stopped when the test completes.
func StartTestProvider(t *testing.T, port int) *TestProvider {
	t.Helper()
	require := require.New(t)

	p := &TestProvider{
		t: t,
		allowedRedirectURIs: []string{
			"https://example.com",
		},
		expectedScope: DefaultScope,
		replySubject:  "alice@example.com",
		replyUserinfo: map[string]interface{}{
			"sub":   "alice@example.com",
			"email": "alice@example.com",
			"name":  "Alice",
		},
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)
	p.jwks = testJWKS(t, p.ecdsaPublicKey)

	switch port {
	case 0:
		p.httpServer = httptest.NewUnstartedServer(p)
	default:
		p.httpServer = httptestNewUnstartedServerWithPort(t, p, port)
	}
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()

	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// SetClientCreds is for configuring the client information required for the
// OIDC workflows.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the auth code to return from /auth and the
// allowed auth code for /token.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetExpectedScope configures the scope /auth requires.  Defaults to "openid".
func (p *TestProvider) SetExpectedScope(scope string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedScope = scope
}

// SetAllowedRedirectURIs allows you to configure the allowed redirect URIs for
// the OIDC workflow. If not configured a sample of "https://example.com" is
// used.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetCustomClaims lets you set claims to return in the access token issued
// by the OIDC workflow.
func (p *TestProvider) SetCustomClaims(customClaims map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customClaims = customClaims
}

// SetUserInfoReply sets the claims returned by /userinfo.
func (p *TestProvider) SetUserInfoReply(reply map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replyUserinfo = reply
}

// SetTokenError forces /token to reply with an oauth error.  A nil err
// restores normal replies.
func (p *TestProvider) SetTokenError(err *ProviderError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenError = err
}

// OmitIDTokens makes the /token endpoint omit the id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// DisableUserInfo makes the userinfo endpoint return 404 and omits it from the
// discovery config.
func (p *TestProvider) DisableUserInfo() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disableUserInfo = true
}

// TokenRequests returns the number of requests made to /token.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

// LastRedirectURI returns the redirect_uri of the most recent /token request.
func (p *TestProvider) LastRedirectURI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRedirectURI
}

// LastAuthNonce returns the nonce of the most recent /auth request.
func (p *TestProvider) LastAuthNonce() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAuthNonce
}

// Addr returns the current base URL for the test provider's running webserver.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// SigningKeys returns the test provider's pem-encoded keys used to sign JWTs.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// Metadata returns the provider's endpoints, suitable for manual endpoint
// configuration.
func (p *TestProvider) Metadata() IssuerMetadata {
	return IssuerMetadata{
		Issuer:                p.Addr(),
		AuthorizationEndpoint: p.Addr() + "/auth",
		TokenEndpoint:         p.Addr() + "/token",
		UserInfoEndpoint:      p.Addr() + "/userinfo",
		JWKSURI:               p.Addr() + "/certs",
	}
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, out interface{}) error {
	enc := json.NewEncoder(w)
	return enc.Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()

	redirectURI := qv.Get("redirect_uri") +
		"?state=" + url.QueryEscape(qv.Get("state")) +
		"&error=" + url.QueryEscape(errorCode)

	if errorMessage != "" {
		redirectURI += "&error_description=" + url.QueryEscape(errorMessage)
	}

	http.Redirect(w, req, redirectURI, http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) error {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}

	w.WriteHeader(statusCode)
	return p.writeJSON(w, &body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch req.URL.Path {
	case "/.well-known/openid-configuration":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		reply := struct {
			Issuer           string `json:"issuer"`
			AuthEndpoint     string `json:"authorization_endpoint"`
			TokenEndpoint    string `json:"token_endpoint"`
			JWKSURI          string `json:"jwks_uri"`
			UserinfoEndpoint string `json:"userinfo_endpoint,omitempty"`
			Algs             []Alg  `json:"id_token_signing_alg_values_supported"`
		}{
			Issuer:           p.Addr(),
			AuthEndpoint:     p.Addr() + "/auth",
			TokenEndpoint:    p.Addr() + "/token",
			JWKSURI:          p.Addr() + "/certs",
			UserinfoEndpoint: p.Addr() + "/userinfo",
			Algs:             []Alg{ES256},
		}
		if p.disableUserInfo {
			reply.UserinfoEndpoint = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/auth":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		p.lastAuthNonce = qv.Get("nonce")

		switch {
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case qv.Get("scope") != p.expectedScope:
			p.writeAuthErrorResponse(w, req, "invalid_scope", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "")
			return
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}

		state := qv.Get("state")
		if state == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		}
		redirectURI := qv.Get("redirect_uri")
		if redirectURI == "" {
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing redirect_uri parameter")
			return
		}

		redirectURI += "?state=" + url.QueryEscape(state) +
			"&code=" + url.QueryEscape(p.expectedAuthCode)

		http.Redirect(w, req, redirectURI, http.StatusFound)

	case "/certs":
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = p.writeJSON(w, p.jwks)

	case "/token":
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++
		p.lastRedirectURI = req.FormValue("redirect_uri")

		clientID, clientSecret, ok := req.BasicAuth()
		if !ok {
			clientID, clientSecret = req.FormValue("client_id"), req.FormValue("client_secret")
		}

		switch {
		case p.tokenError != nil:
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, p.tokenError.Code, p.tokenError.Description)
			return
		case req.FormValue("grant_type") != "authorization_code":
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "bad grant_type")
			return
		case clientID != p.clientID || clientSecret != p.clientSecret:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "unknown client")
			return
		case !strutils.StrListContains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
			_ = p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.FormValue("code") != p.expectedAuthCode:
			_ = p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_grant", "unexpected auth code")
			return
		}

		now := time.Now()
		stdClaims := jwt.Claims{
			Subject:   p.replySubject,
			Issuer:    p.Addr(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
			Expiry:    jwt.NewNumericDate(now.Add(5 * time.Minute)),
			Audience:  jwt.Audience{p.clientID},
		}
		accessToken := TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, p.customClaims)
		p.lastIssuedAccess = accessToken

		reply := struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			IDToken     string `json:"id_token,omitempty"`
		}{
			AccessToken: accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   300,
			IDToken:     TestSignJWT(p.t, p.ecdsaPrivateKey, stdClaims, nil),
		}
		if p.omitIDToken {
			reply.IDToken = ""
		}
		_ = p.writeJSON(w, &reply)

	case "/userinfo":
		if p.disableUserInfo {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		bearer := strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer ")
		if bearer == "" || bearer != p.lastIssuedAccess {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = p.writeJSON(w, p.replyUserinfo)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// testJWKS converts a pem-encoded public key into JWKS data suitable for a
// verification endpoint response
func testJWKS(t *testing.T, pubKey string) *jose.JSONWebKeySet {
	t.Helper()
	require := require.New(t)

	block, _ := pem.Decode([]byte(pubKey))
	require.NotNil(block)

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	require.NoError(err)

	return &jose.JSONWebKeySet{
		Keys: []jose.JSONWebKey{
			{
				Key:       pub,
				Algorithm: string(ES256),
				Use:       "sig",
			},
		},
	}
}

// httptestNewUnstartedServerWithPort is roughly the same as
// httptest.NewUnstartedServer() but allows the caller to explicitly choose the
// port.
func httptestNewUnstartedServerWithPort(t *testing.T, handler http.Handler, port int) *httptest.Server {
	t.Helper()
	require := require.New(t)

	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	l, err := net.Listen("tcp", addr)
	require.NoError(err)

	return &httptest.Server{
		Listener: l,
		Config:   &http.Server{Handler: handler},
	}
}
