// Copyright © 2025 Stilch contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/stilch/main.go
// Summary: Entry point for the stilch compositor core.

package main

import "os"

func main() {
	os.Exit(run())
}
