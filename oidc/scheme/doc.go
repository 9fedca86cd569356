// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package scheme provides the relying party's authentication middleware.

Each request is in one of three states, read from its cookie: Anonymous,
LoginPending or Authenticated.  Authenticate lets authenticated requests
through and sends everyone else to the provider:

	s, err := scheme.New(provider, codec, scheme.WithLogger(logger))
	r.With(s.Authenticate).Get("/protected", handler)

A request in the LoginPending state that reaches a protected route restarts
the login with a new attempt.
*/
package scheme
