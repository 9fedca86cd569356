// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"strings"

	"github.com/hashicorp/oidcrp/internal/strutils"
	"github.com/hashicorp/oidcrp/oidc"
)

// newDomainValidator accepts logins whose userinfo email is in one of the
// domains.  No domains accepts every login.
func newDomainValidator(domains []string) oidc.LoginValidator {
	if len(domains) == 0 {
		return oidc.AllowAllLogins
	}
	allowed := strutils.RemoveDuplicatesStable(domains, true)
	for i := range allowed {
		allowed[i] = strings.ToLower(strings.TrimSpace(allowed[i]))
	}
	return oidc.LoginValidatorFunc(func(_ context.Context, _ oidc.Credentials, u oidc.UserInfo) (bool, error) {
		email, _ := u["email"].(string)
		at := strings.LastIndex(email, "@")
		if at < 0 {
			return false, nil
		}
		return strutils.StrListContains(allowed, strings.ToLower(email[at+1:])), nil
	})
}
