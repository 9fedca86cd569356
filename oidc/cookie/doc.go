// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package cookie stores the relying party's state in a single signed (and
// optionally encrypted) browser cookie: the LoginAttempt while a login is in
// progress, then the user's Credentials once it succeeds.
package cookie
