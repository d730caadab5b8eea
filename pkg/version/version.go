package version

import "runtime/debug"

// Build holds the build identifier, injected via -ldflags. Default "dev".
var Build = "dev"

// String returns Build plus the VCS revision embedded by the Go toolchain,
// when there is one.
func String() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Build
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return Build + " (" + s.Value[:7] + ")"
		}
	}
	return Build
}
