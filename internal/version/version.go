// Package version reports the build version of this module, for the CLI's "version" subcommand.
package version

import "runtime/debug"

// Default is used when build info carries no usable version, e.g. a `go run` invocation outside a release tag.
const Default = "dev"

// Get returns the module's version as recorded in the binary's build info (the tag or pseudo-version resolved
// at `go build` time), or Default if none is available.
func Get() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Default
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		return v
	}
	return Default
}
