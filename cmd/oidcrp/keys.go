// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/base64"
	"fmt"

	"github.com/hashicorp/oidcrp/oidc/cookie"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate cookie keys",
	Long:  "Generate random cookie keys, printed as environment variables for every instance of the server.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hashKey, blockKey, err := cookie.GenerateKeys()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "OIDC_COOKIE_HASH_KEY=%s\nOIDC_COOKIE_BLOCK_KEY=%s\n",
			base64.StdEncoding.EncodeToString(hashKey),
			base64.StdEncoding.EncodeToString(blockKey))
		return nil
	},
}
