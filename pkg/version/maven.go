package version

import (
	"fmt"
	"strings"
)

// MavenVersionValue is a major[.minor] value inside a Maven version range
type MavenVersionValue struct {
	Major int
	Minor *int
}

func (v MavenVersionValue) String() string {
	if v.Minor != nil {
		return fmt.Sprintf("%d.%d", v.Major, *v.Minor)
	}
	return fmt.Sprintf("%d", v.Major)
}

// MavenVersionLimit is one endpoint of a Maven version range. A nil Value
// leaves the endpoint unbounded.
type MavenVersionLimit struct {
	Closed bool
	Value  *MavenVersionValue
}

// MavenVersionRange is the Maven-style version range the Adoptium API accepts
// as a URL path segment, e.g. [17,18) for "any 17".
type MavenVersionRange struct {
	Lower MavenVersionLimit
	Upper MavenVersionLimit
}

// MavenExactMajor returns the range [major,major+1) selecting one major release
func MavenExactMajor(major int) MavenVersionRange {
	lower := MavenVersionValue{Major: major}
	upper := MavenVersionValue{Major: major + 1}
	return MavenVersionRange{
		Lower: MavenVersionLimit{Closed: true, Value: &lower},
		Upper: MavenVersionLimit{Value: &upper},
	}
}

// MavenAllVersions returns the range [1,100)
func MavenAllVersions() MavenVersionRange {
	lower := MavenVersionValue{Major: 1}
	upper := MavenVersionValue{Major: 100}
	return MavenVersionRange{
		Lower: MavenVersionLimit{Closed: true, Value: &lower},
		Upper: MavenVersionLimit{Value: &upper},
	}
}

func (r MavenVersionRange) String() string {
	var sb strings.Builder
	if r.Lower.Closed {
		sb.WriteByte('[')
	} else {
		sb.WriteByte('(')
	}
	if r.Lower.Value != nil {
		sb.WriteString(r.Lower.Value.String())
	}
	sb.WriteByte(',')
	if r.Upper.Value != nil {
		sb.WriteString(r.Upper.Value.String())
	}
	if r.Upper.Closed {
		sb.WriteByte(']')
	} else {
		sb.WriteByte(')')
	}
	return sb.String()
}

// ToPathSegment percent-encodes the range for use as a URL path segment; the
// Adoptium API requires (, ), [, ] and , to be escaped
func (r MavenVersionRange) ToPathSegment() string {
	replacer := strings.NewReplacer(
		"(", "%28",
		")", "%29",
		",", "%2C",
		"[", "%5B",
		"]", "%5D",
	)
	return replacer.Replace(r.String())
}
