// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package httpclient builds the http.Client used to talk to an OIDC provider.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"

	"github.com/hashicorp/go-cleanhttp"
)

// ErrInvalidCertificatePem is returned when the CA PEM cannot be parsed.
var ErrInvalidCertificatePem = errors.New("invalid certificate PEM")

// New creates a new http client which will use the optional CA certificate PEM
// if provided, otherwise it will use the installed system CA chain.
func New(caPEM string) (*http.Client, error) {
	tr := cleanhttp.DefaultPooledTransport()

	if caPEM != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(caPEM)); !ok {
			return nil, ErrInvalidCertificatePem
		}

		tr.TLSClientConfig = &tls.Config{
			RootCAs:    certPool,
			MinVersion: tls.VersionTLS12,
		}
	}

	return &http.Client{
		Transport: tr,
	}, nil
}
