// Package semver parses and compares semantic version strings.
package semver

import (
	"cmp"
	"fmt"
	"regexp"
	"strconv"
)

// Version represents a semantic version
type Version struct {
	Major      int
	Minor      int
	Patch      int
	Prerelease string
	Build      string
}

var semverRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// Parse parses a semantic version string
func Parse(version string) (*Version, error) {
	m := semverRegex.FindStringSubmatch(version)
	if m == nil {
		return nil, fmt.Errorf("invalid semantic version: %s", version)
	}

	v := &Version{Prerelease: m[4], Build: m[5]}
	for i, dst := range []*int{&v.Major, &v.Minor, &v.Patch} {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return nil, fmt.Errorf("invalid semantic version %s: %w", version, err)
		}
		*dst = n
	}
	return v, nil
}

// MustParse is like Parse but panics on an invalid version
func MustParse(version string) *Version {
	v, err := Parse(version)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the string representation of the version
func (v *Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	if v.Build != "" {
		s += "+" + v.Build
	}
	return s
}

// Compare returns -1, 0 or 1 as v orders before, equal to or after other.
// Build metadata is ignored and a prerelease orders before its release.
func (v *Version) Compare(other *Version) int {
	if c := cmp.Compare(v.Major, other.Major); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := cmp.Compare(v.Patch, other.Patch); c != 0 {
		return c
	}
	switch {
	case v.Prerelease == other.Prerelease:
		return 0
	case v.Prerelease == "":
		return 1
	case other.Prerelease == "":
		return -1
	}
	return cmp.Compare(v.Prerelease, other.Prerelease)
}

// Reads reports whether code at layout version v can read records written
// under stored: the major versions match and stored is not newer than v.
func (v *Version) Reads(stored *Version) bool {
	return v.Major == stored.Major && stored.Compare(v) <= 0
}
