package server

import (
	"github.com/Masterminds/semver/v3"
)

// Version is the current version of the bridge.
// The version follows semantic versioning (MAJOR.MINOR.PATCH).
const Version = "0.1.0"

// versionConstraint accepts clients built against the same minor release.
var versionConstraint *semver.Constraints

func init() {
	var err error
	versionConstraint, err = semver.NewConstraint("~" + Version)
	if err != nil {
		panic(err)
	}
}

// IsVersionCompatible reports whether a client at the given version can talk
// to this bridge. Invalid version strings are never compatible.
func IsVersionCompatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return versionConstraint.Check(v)
}
