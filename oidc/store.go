// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import "context"

// Key suffixes used when persisting a successful login.  Entries are keyed by
// the access_token followed by the suffix.
const (
	UserInfoKeySuffix = "userInfos"
	TokenKeySuffix    = "token"
)

// Entry is a single key/value pair handed to a Store.
type Entry struct {
	Key   string
	Value interface{}
}

// Store persists the results of successful logins.  Implementations must be
// concurrently safe, since a Store will be used within a concurrent
// http.Handler.
type Store interface {
	// Save persists all the entries.
	Save(ctx context.Context, entries []Entry) error
}

// LoginEntries returns the entries persisted for a successful login: the
// user info and the token response, both keyed by the access_token.
func LoginEntries(t Token, u UserInfo) []Entry {
	at := string(t.AccessToken())
	return []Entry{
		{Key: at + UserInfoKeySuffix, Value: u},
		{Key: at + TokenKeySuffix, Value: t.Response()},
	}
}
