// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"github.com/spf13/cobra"
)

const (
	// ExitSetupFailed defines exit code
	ExitSetupFailed = 1
)

var (
	configPath string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:           "oidcrp",
		Short:         "OpenID Connect relying party demo server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file; OIDC_* environment variables override it")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "overrides the config's log level (trace, debug, info, warn, error)")
	rootCmd.AddCommand(serveCmd, keysCmd)
}
