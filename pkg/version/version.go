// Package version exposes build metadata injected with -ldflags, e.g.
//
//	-X github.com/Sumatoshi-tech/treechurn/pkg/version.Version=v1.0.0
package version

import "runtime/debug"

// Build metadata. Overridden at link time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// InitBinaryVersion fills unset metadata from the module build info when the
// binary was built with `go install`.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == "none" {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == "unknown" {
				Date = setting.Value
			}
		}
	}
}

// String formats the metadata for the version command.
func String() string {
	return Version + " (commit: " + Commit + ", built: " + Date + ")"
}
