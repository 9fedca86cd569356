// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

/*
Package callback provides the http handler for the provider's redirect back to
the relying party at the end of an authorization code flow.

	h, err := callback.AuthCode(provider, codec,
		callback.WithStore(store),
		callback.WithLoginValidator(validator),
		callback.WithLogger(logger),
	)
	r.Get(callbackPath, h)

The handler validates the callback's state against the login attempt in the
cookie, exchanges the code, fetches the user's UserInfo, decodes the access
token's claims, validates the login, persists it and finally sets the
authenticated cookie.
*/
package callback
