// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Command-line entrypoint for dokeys.
//
// Usage:
//
//	go run . [flags]
//	./dokeys [flags]
//
// See --help for options.
package main

import (
	"os"

	"github.com/flavienbert/digitalocean/internal/logging"
	"github.com/flavienbert/digitalocean/ui/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logging.Errorf("dokeys: %v", err)
		os.Exit(1)
	}
}
