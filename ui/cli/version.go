// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/flavienbert/digitalocean/buildvars"
)

const modulePath = "github.com/flavienbert/digitalocean"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		// No config is needed to print the version.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			v, commit, date := resolveBuildVersion(nil)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "version: %s\n", v)
			fmt.Fprintf(out, "commit: %s\n", commit)
			if date != "" {
				fmt.Fprintf(out, "built: %s\n", date)
			}
		},
	}
}

// resolveBuildVersion computes the best-available version, commit and build
// date for the running binary. If `info` is nil, it reads build info from
// the runtime.
func resolveBuildVersion(info *debug.BuildInfo) (version, commit, date string) {
	version = buildvars.VersionOrDefault("dev")
	commit = buildvars.Commit
	if commit == "" {
		commit = "dev"
	}
	date = buildvars.Date

	if info == nil {
		if local, ok := debug.ReadBuildInfo(); ok {
			info = local
		}
	}
	if info != nil {
		if version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		// Some build paths leave Main empty; look for the module among
		// the dependencies instead.
		if version == "dev" {
			for _, dep := range info.Deps {
				if dep.Path == modulePath && dep.Version != "" {
					version = dep.Version
					break
				}
			}
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if s.Value != "" && commit == "dev" {
					commit = s.Value
				}
			case "vcs.time":
				if s.Value != "" && date == "" {
					date = s.Value
				}
			}
		}
	}

	// As a last resort show the commit to aid support.
	if version == "dev" && commit != "dev" {
		version = commit
	}
	return version, commit, date
}
