// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the demo server's configuration from YAML, with
// environment overrides for secrets and deployment specific values.
package config

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/oidc"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OIDC_"

// Config is the demo server's configuration.
type Config struct {
	Listen     string        `yaml:"listen"`
	Log        LogConfig     `yaml:"log"`
	OIDC       OIDCConfig    `yaml:"oidc"`
	Cookie     CookieConfig  `yaml:"cookie"`
	Store      StoreConfig   `yaml:"store"`
	AttemptTTL time.Duration `yaml:"attempt_ttl"`

	// AllowedDomains restricts logins to users whose email is in one of the
	// domains.  Empty allows every login.
	AllowedDomains []string `yaml:"allowed_domains"`
}

// LogConfig controls the hclog logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// OIDCConfig is the relying party's client and provider configuration.
type OIDCConfig struct {
	ClientID             string   `yaml:"client_id"`
	ClientSecret         string   `yaml:"client_secret"`
	CallbackURL          string   `yaml:"callback_url"`
	XHRCallbackURL       string   `yaml:"xhr_callback_url"`
	DiscoveryURL         string   `yaml:"discovery_url"`
	Issuer               string   `yaml:"issuer"`
	AuthorizationURL     string   `yaml:"authorization_url"`
	TokenURL             string   `yaml:"token_url"`
	UserInfoURL          string   `yaml:"userinfo_url"`
	JWKSURL              string   `yaml:"jwks_url"`
	Cookie               string   `yaml:"cookie"`
	Scope                string   `yaml:"scope"`
	SupportedSigningAlgs []string `yaml:"supported_signing_algs"`
	ProviderCAFile       string   `yaml:"provider_ca_file"`
}

// CookieConfig holds the cookie's keys (base64) and attributes.
type CookieConfig struct {
	HashKey  string `yaml:"hash_key"`
	BlockKey string `yaml:"block_key"`
	Secure   bool   `yaml:"secure"`
	Domain   string `yaml:"domain"`
	Path     string `yaml:"path"`
	MaxAge   int    `yaml:"max_age"`
}

// StoreConfig selects where successful logins are kept.  An empty RedisURL
// keeps them in memory.
type StoreConfig struct {
	Disabled   bool          `yaml:"disabled"`
	RedisURL   string        `yaml:"redis_url"`
	Expiration time.Duration `yaml:"expiration"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		Listen:     "127.0.0.1:8080",
		Log:        LogConfig{Level: "info"},
		AttemptTTL: oidc.DefaultLoginAttemptExpiry,
		Cookie:     CookieConfig{Path: "/"},
		OIDC: OIDCConfig{
			Cookie: oidc.DefaultCookieName,
			Scope:  oidc.DefaultScope,
		},
	}
}

// Load reads the YAML file at path (when path isn't empty), applies the
// environment overrides and validates the result.  Unknown keys are errors.
func Load(path string) (Config, error) {
	const op = "config.Load"
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%s: read config: %w", op, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("%s: parse config: %w", op, err)
		}
	}
	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", op, err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var result *multierror.Error
	overrides := map[string]func(string){
		"LISTEN":           func(v string) { cfg.Listen = v },
		"LOG_LEVEL":        func(v string) { cfg.Log.Level = v },
		"CLIENT_ID":        func(v string) { cfg.OIDC.ClientID = v },
		"CLIENT_SECRET":    func(v string) { cfg.OIDC.ClientSecret = v },
		"CALLBACK_URL":     func(v string) { cfg.OIDC.CallbackURL = v },
		"XHR_CALLBACK_URL": func(v string) { cfg.OIDC.XHRCallbackURL = v },
		"DISCOVERY_URL":    func(v string) { cfg.OIDC.DiscoveryURL = v },
		"SCOPE":            func(v string) { cfg.OIDC.Scope = v },
		"COOKIE_HASH_KEY":  func(v string) { cfg.Cookie.HashKey = v },
		"COOKIE_BLOCK_KEY": func(v string) { cfg.Cookie.BlockKey = v },
		"REDIS_URL":        func(v string) { cfg.Store.RedisURL = v },
		"ALLOWED_DOMAINS":  func(v string) { cfg.AllowedDomains = strutils.SplitScope(strings.ReplaceAll(v, ",", " ")) },
		"COOKIE_SECURE": func(v string) {
			b, err := strconv.ParseBool(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%sCOOKIE_SECURE: %w", EnvPrefix, err))
				return
			}
			cfg.Cookie.Secure = b
		},
	}
	for key, fn := range overrides {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			fn(v)
		}
	}
	return result.ErrorOrNil()
}

// Validate checks the configuration.  The OIDC settings are validated by
// oidc.Config.Validate when the relying party is built.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.Listen == "" {
		result = multierror.Append(result, errors.New("listen address is empty"))
	}
	if c.AttemptTTL <= 0 {
		result = multierror.Append(result, errors.New("attempt_ttl must be positive"))
	}
	if c.Cookie.MaxAge < 0 {
		result = multierror.Append(result, errors.New("cookie max_age can't be negative"))
	}
	if _, _, err := c.CookieKeys(); err != nil {
		result = multierror.Append(result, err)
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", oidc.ErrConfig, err)
	}
	return nil
}

// CookieKeys decodes the cookie's keys.  Both are nil when no hash key is
// configured.
func (c Config) CookieKeys() (hashKey, blockKey []byte, err error) {
	if c.Cookie.HashKey == "" {
		if c.Cookie.BlockKey != "" {
			return nil, nil, errors.New("cookie block_key requires a hash_key")
		}
		return nil, nil, nil
	}
	hashKey, err = base64.StdEncoding.DecodeString(c.Cookie.HashKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cookie hash_key isn't base64: %w", err)
	}
	if c.Cookie.BlockKey != "" {
		blockKey, err = base64.StdEncoding.DecodeString(c.Cookie.BlockKey)
		if err != nil {
			return nil, nil, fmt.Errorf("cookie block_key isn't base64: %w", err)
		}
	}
	return hashKey, blockKey, nil
}

// RelyingParty returns the oidc.Config, reading the provider CA file if one is
// configured.
func (c Config) RelyingParty() (*oidc.Config, error) {
	const op = "Config.RelyingParty"
	o := c.OIDC
	opts := []oidc.Option{
		oidc.WithDiscoveryURL(o.DiscoveryURL),
		oidc.WithXHRCallbackURL(o.XHRCallbackURL),
		oidc.WithCookieName(o.Cookie),
		oidc.WithScope(o.Scope),
	}
	if o.DiscoveryURL == "" {
		opts = append(opts, oidc.WithManualEndpoints(oidc.IssuerMetadata{
			Issuer:                o.Issuer,
			AuthorizationEndpoint: o.AuthorizationURL,
			TokenEndpoint:         o.TokenURL,
			UserInfoEndpoint:      o.UserInfoURL,
			JWKSURI:               o.JWKSURL,
		}))
	}
	if len(o.SupportedSigningAlgs) > 0 {
		algs := make([]oidc.Alg, 0, len(o.SupportedSigningAlgs))
		for _, a := range o.SupportedSigningAlgs {
			algs = append(algs, oidc.Alg(a))
		}
		opts = append(opts, oidc.WithSupportedSigningAlgs(algs...))
	}
	if o.ProviderCAFile != "" {
		pem, err := os.ReadFile(o.ProviderCAFile)
		if err != nil {
			return nil, fmt.Errorf("%s: read provider CA: %w", op, err)
		}
		opts = append(opts, oidc.WithProviderCA(string(pem)))
	}
	rc, err := oidc.NewConfig(o.ClientID, oidc.ClientSecret(o.ClientSecret), o.CallbackURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return rc, nil
}
