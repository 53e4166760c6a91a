// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// version is set at build time:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/geiger
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the geiger version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "geiger %s\n", displayVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// displayVersion returns the canonical form of version, accepting it
// with or without the leading "v". Anything that is not semver reports
// as "dev".
func displayVersion() string {
	v := version
	if v != "" && v[0] != 'v' {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return "dev"
	}
	return semver.Canonical(v)
}
