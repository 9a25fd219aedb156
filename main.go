// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Frostlock - Refrigerated Parcel Locker Controller
//
// A CLI and HTTP service that monitors and drives a refrigerated parcel
// locker over its serial protocol.

package main

import (
	"errors"
	"os"

	"github.com/Thermoquad/frostlock/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		var exit *cmd.ExitError
		if errors.As(err, &exit) {
			os.Exit(exit.Code)
		}
		os.Exit(1)
	}
}
