package version

import (
	"strconv"
	"strings"
)

// JavaVersion is an OpenJDK version as reported by the Adoptium API. Two
// styles occur in the wild: the modern M[.m[.p[.b]]]+q form (17.0.7+7,
// 18.0.2.1+1) and the legacy 1.m.p_q-q2 form (1.8.0_372-b07).
type JavaVersion struct {
	Major      int
	Minor      *int
	Patch      *int
	Build      *int
	Qualifier1 int
	Qualifier2 string
	raw        string
}

// ParseJava parses either OpenJDK version style
func ParseJava(s string) (*JavaVersion, error) {
	if prefix, suffix, ok := strings.Cut(s, "_"); ok {
		// Legacy style: 1.m.p_q1-q2
		q1, q2, ok := strings.Cut(suffix, "-")
		if !ok {
			return nil, invalidVersion(s)
		}
		major, minor, patch, build, err := parseDotted(s, prefix)
		if err != nil {
			return nil, err
		}
		qualifier1, err := strconv.Atoi(q1)
		if err != nil {
			return nil, invalidVersion(s)
		}
		return &JavaVersion{
			Major:      major,
			Minor:      minor,
			Patch:      patch,
			Build:      build,
			Qualifier1: qualifier1,
			Qualifier2: q2,
			raw:        s,
		}, nil
	}

	// Modern style: M[.m[.p[.b]]]+q1
	prefix, q1, ok := strings.Cut(s, "+")
	if !ok {
		return nil, invalidVersion(s)
	}
	major, minor, patch, build, err := parseDotted(s, prefix)
	if err != nil {
		return nil, err
	}
	qualifier1, err := strconv.Atoi(q1)
	if err != nil {
		return nil, invalidVersion(s)
	}
	return &JavaVersion{
		Major:      major,
		Minor:      minor,
		Patch:      patch,
		Build:      build,
		Qualifier1: qualifier1,
		raw:        s,
	}, nil
}

func parseDotted(input, s string) (major int, minor, patch, build *int, err error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return 0, nil, nil, nil, invalidVersion(input)
	}
	values := make([]int, len(parts))
	for i, part := range parts {
		values[i], err = strconv.Atoi(part)
		if err != nil {
			return 0, nil, nil, nil, invalidVersion(input)
		}
	}
	major = values[0]
	if len(values) > 1 {
		minor = &values[1]
	}
	if len(values) > 2 {
		patch = &values[2]
	}
	if len(values) > 3 {
		build = &values[3]
	}
	return major, minor, patch, build, nil
}

// String returns the version exactly as parsed
func (v *JavaVersion) String() string {
	return v.raw
}

// Compare orders by the numeric components in declaration order, then by the
// qualifiers
func (v *JavaVersion) Compare(other *JavaVersion) int {
	if c := compareInt(v.Major, other.Major); c != 0 {
		return c
	}
	if c := compareOptionalInt(v.Minor, other.Minor); c != 0 {
		return c
	}
	if c := compareOptionalInt(v.Patch, other.Patch); c != 0 {
		return c
	}
	if c := compareOptionalInt(v.Build, other.Build); c != 0 {
		return c
	}
	if c := compareInt(v.Qualifier1, other.Qualifier1); c != 0 {
		return c
	}
	return compareString(v.Qualifier2, other.Qualifier2)
}
