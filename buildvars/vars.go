// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

// Package buildvars contains variables injected at build time.
package buildvars

// Set at link time, e.g.
// -ldflags "-X github.com/flavienbert/digitalocean/buildvars.Version=v0.3.0".
// They are empty for local or development builds.
var (
	Version string
	Commit  string
	Date    string
)

// VersionOrDefault returns `Version` if set, otherwise returns the provided default.
func VersionOrDefault(def string) string {
	if len(Version) > 0 {
		return Version
	}
	return def
}

// UserAgent is the User-Agent the API client sends.
func UserAgent() string {
	return "dokeys/" + VersionOrDefault("dev")
}
