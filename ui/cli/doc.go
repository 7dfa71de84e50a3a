// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.
//
// Package cli implements the dokeys command-line interface using Cobra.
// It loads configuration, builds the API client and delegates the actual
// work to the internal api, waiter and scenario packages.
package cli
