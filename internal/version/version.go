package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// Version is set via the linker flags.
	Version = "unknown"

	FullVersion = fullVersion()
)

func fullVersion() string {
	if Version == "unknown" {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			Version = strings.TrimPrefix(buildInfo.Main.Version, "v")
		}
	}

	return fmt.Sprintf("%s-%s", Version, runtimeVersion())
}

func runtimeVersion() string {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		return buildInfo.GoVersion
	}

	return "unknown"
}
