package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Normalize removes common prefixes from user-supplied version specs
// (v3.11.4 -> 3.11.4, go1.22.1 -> 1.22.1)
func Normalize(spec string) string {
	spec = strings.TrimSpace(spec)
	spec = strings.TrimPrefix(spec, "go")
	spec = strings.TrimPrefix(spec, "v")
	return spec
}

// SatisfiesConstraint reports whether a concrete version satisfies a semver
// constraint such as "3.11", "^1.22" or ">=17". "latest" matches everything.
// Versions that do not parse as semver only match themselves exactly.
func SatisfiesConstraint(version, constraint string) (bool, error) {
	normVersion := Normalize(version)
	normConstraint := Normalize(constraint)

	if normConstraint == "" || normConstraint == "latest" {
		return true, nil
	}
	if normVersion == normConstraint {
		return true, nil
	}

	sv, err := semver.NewVersion(normVersion)
	if err != nil {
		return false, nil
	}

	c, err := semver.NewConstraint(normConstraint)
	if err != nil {
		return false, err
	}
	return c.Check(sv), nil
}
