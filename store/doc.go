// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package store provides an oidc.Store for successful logins, kept in memory
// or in Redis.
package store
