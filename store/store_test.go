// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/hashicorp/oidcrp/oidc"
	"github.com/hashicorp/oidcrp/store"
)

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	assert, require := assert.New(t), require.New(t)
	ctx := context.Background()
	s, err := store.New(ctx)
	require.NoError(err)
	defer s.Close()

	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	tk, err := oidc.NewToken("id-token", &oauth2.Token{AccessToken: "access-token", TokenType: "Bearer", Expiry: expiry})
	require.NoError(err)
	info := oidc.UserInfo{"sub": "alice", "email": "alice@example.com"}
	require.NoError(s.Save(ctx, oidc.LoginEntries(tk, info)))

	var gotInfo oidc.UserInfo
	require.NoError(s.Load(ctx, "access-tokenuserInfos", &gotInfo))
	assert.Equal(info, gotInfo)

	var gotToken oidc.TokenResponse
	require.NoError(s.Load(ctx, "access-tokentoken", &gotToken))
	assert.Equal("access-token", gotToken.AccessToken)
	assert.Equal("id-token", gotToken.IDToken)
	assert.Equal("Bearer", gotToken.TokenType)
	assert.True(expiry.Equal(gotToken.Expiry))

	err = s.Load(ctx, "missing", &gotInfo)
	assert.ErrorIs(err, oidc.ErrNotFound)
	err = s.Load(ctx, "access-tokentoken", nil)
	assert.ErrorIs(err, oidc.ErrNilParameter)

	var wrongType int
	err = s.Load(ctx, "access-tokenuserInfos", &wrongType)
	require.Error(err)
	assert.NotErrorIs(err, oidc.ErrNotFound)
}

func TestMemoryStore_expiration(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := store.New(ctx, store.WithExpiration(100*time.Millisecond), store.WithCleanupInterval(300*time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, s.Save(ctx, []oidc.Entry{{Key: "testing", Value: "tested"}}))
	var got string
	require.NoError(t, s.Load(ctx, "testing", &got))
	assert.Equal(t, "tested", got)

	time.Sleep(300 * time.Millisecond)
	err = s.Load(ctx, "testing", &got)
	assert.ErrorIs(t, err, oidc.ErrNotFound)
}

func TestStore_Save(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, err := store.New(ctx)
	require.NoError(t, err)

	err = s.Save(ctx, []oidc.Entry{{Key: "", Value: "v"}})
	assert.ErrorIs(t, err, oidc.ErrInvalidParameter)

	err = s.Save(ctx, []oidc.Entry{{Key: "k", Value: make(chan int)}})
	assert.Error(t, err)

	assert.NoError(t, s.Save(ctx, nil))
}

func TestRedisStoreConnectionFailure(t *testing.T) {
	t.Parallel()
	_, err := store.New(context.Background(), store.WithRedisURL("redis://127.0.0.1:1/0"))
	assert.Error(t, err)
}

func TestRedisStoreBadURL(t *testing.T) {
	t.Parallel()
	_, err := store.New(context.Background(), store.WithRedisURL("not a url://"))
	assert.ErrorIs(t, err, oidc.ErrInvalidParameter)
}
