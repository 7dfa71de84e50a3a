// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package logging

import (
	"strings"

	clog "github.com/charmbracelet/log"
)

// SetDebug toggles debug output on the package logger.
func SetDebug(enabled bool) {
	if enabled {
		L.SetLevel(clog.DebugLevel)
		return
	}
	L.SetLevel(clog.InfoLevel)
}

// SetLevel sets the package logger level from its textual name
// ("debug", "info", "warn", "error"). Unknown names fall back to info.
func SetLevel(name string) {
	lvl, err := clog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		lvl = clog.InfoLevel
	}
	L.SetLevel(lvl)
}
