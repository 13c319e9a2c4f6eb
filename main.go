// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// poolbus - Jandy RS-485 keypad gateway
//
// A CLI tool that joins a pool panel's RS-485 bus as an AllButton keypad,
// follows the panel display and drives its menus.

package main

import (
	"os"

	"github.com/Thermoquad/poolbus/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
