/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"strings"
	"sync"

	"runtime/debug"
)

const LibName = "go-authfilter"

const libPath = "github.com/acronis/" + LibName

var libVersion string
var libVersionOnce sync.Once

func initLibVersion() {
	if buildInfo, ok := debug.ReadBuildInfo(); ok {
		libVersion = extractLibVersion(buildInfo, libPath)
	}
	if libVersion == "" {
		libVersion = "v0.0.0"
	}
}

func extractLibVersion(buildInfo *debug.BuildInfo, moduleName string) string {
	if buildInfo == nil {
		return ""
	}
	for _, dep := range buildInfo.Deps {
		if dep.Path == moduleName {
			return dep.Version
		}
		// Major version suffixes (moduleName/v2, moduleName/v3, ...) belong to the same module.
		if strings.HasPrefix(dep.Path, moduleName+"/v") {
			return dep.Version
		}
	}
	return ""
}

func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}
