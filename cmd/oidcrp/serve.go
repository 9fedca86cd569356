// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/hashicorp/oidcrp"
	"github.com/hashicorp/oidcrp/internal/config"
	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/oidc/scheme"
	"github.com/hashicorp/oidcrp/store"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the demo server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, newLogger(cfg.Log))
	},
}

func newLogger(c config.LogConfig) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "oidcrp",
		Level:      hclog.LevelFromString(c.Level),
		JSONFormat: c.JSON,
	})
}

func serve(ctx context.Context, cfg config.Config, logger hclog.Logger) error {
	rp, closeStore, err := newRelyingParty(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rp.Done()
	defer closeStore()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           newRouter(rp),
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          logger.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true}),
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newRelyingParty builds the relying party and its store from the config.
// The returned func closes the store.
func newRelyingParty(ctx context.Context, cfg config.Config, logger hclog.Logger) (*oidcrp.RelyingParty, func() error, error) {
	noop := func() error { return nil }
	rc, err := cfg.RelyingParty()
	if err != nil {
		return nil, noop, err
	}
	hashKey, blockKey, err := cfg.CookieKeys()
	if err != nil {
		return nil, noop, err
	}
	opts := []oidc.Option{
		oidcrp.WithLogger(logger),
		oidcrp.WithCookieKeys(hashKey, blockKey),
		oidcrp.WithCookieSecure(cfg.Cookie.Secure),
		oidcrp.WithCookieDomain(cfg.Cookie.Domain),
		oidcrp.WithCookiePath(cfg.Cookie.Path),
		oidcrp.WithCookieMaxAge(cfg.Cookie.MaxAge),
		oidcrp.WithAttemptTTL(cfg.AttemptTTL),
		oidcrp.WithLoginValidator(newDomainValidator(cfg.AllowedDomains)),
	}

	closeStore := noop
	if !cfg.Store.Disabled {
		s, err := store.New(ctx, store.WithRedisURL(cfg.Store.RedisURL), store.WithExpiration(cfg.Store.Expiration))
		if err != nil {
			return nil, noop, fmt.Errorf("unable to create store: %w", err)
		}
		closeStore = s.Close
		opts = append(opts, oidcrp.WithStore(s))
	}

	rp, err := oidcrp.New(rc, opts...)
	if err != nil {
		_ = closeStore()
		return nil, noop, err
	}
	return rp, closeStore, nil
}

func newRouter(rp *oidcrp.RelyingParty) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "state: %s\n", rp.State(r))
	})
	rp.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(rp.Authenticate)
		r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
			creds, _ := scheme.CredentialsFromContext(r.Context())
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(creds)
		})
	})
	return r
}
