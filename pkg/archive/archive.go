package archive

import (
	"strings"
)

// Type identifies a supported archive format
type Type int

const (
	TypeUnknown Type = iota
	TypeTarGz
	TypeTarZst
	TypeTarXz
	TypeZip
)

// suffixes in detection order; .tar.gz before .gz style ambiguity does not
// arise because only these four are supported
var suffixes = []struct {
	suffix string
	typ    Type
}{
	{".tar.gz", TypeTarGz},
	{".tar.zst", TypeTarZst},
	{".tar.xz", TypeTarXz},
	{".zip", TypeZip},
}

// Suffix returns the canonical file suffix for the type
func (t Type) Suffix() string {
	for _, s := range suffixes {
		if s.typ == t {
			return s.suffix
		}
	}
	return ""
}

func (t Type) String() string {
	switch t {
	case TypeTarGz:
		return "tar.gz"
	case TypeTarZst:
		return "tar.zst"
	case TypeTarXz:
		return "tar.xz"
	case TypeZip:
		return "zip"
	default:
		return "unknown"
	}
}

// Detect determines the archive type from a file name, case-insensitively
func Detect(filename string) Type {
	lower := strings.ToLower(filename)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.typ
		}
	}
	return TypeUnknown
}

// StripSuffix splits a file name into its archive type and base name.
// Returns false when the name matches no supported suffix.
func StripSuffix(filename string) (Type, string, bool) {
	lower := strings.ToLower(filename)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.typ, filename[:len(filename)-len(s.suffix)], true
		}
	}
	return TypeUnknown, "", false
}

// ErrOutputExists is returned when the unpack destination already exists
type ErrOutputExists struct {
	Path string
}

func (e *ErrOutputExists) Error() string {
	return "output directory already exists: " + e.Path
}

// ErrUnsupportedFormat is returned when a file name matches no known archive
// suffix
type ErrUnsupportedFormat struct {
	Filename string
}

func (e *ErrUnsupportedFormat) Error() string {
	return "unsupported archive format: " + e.Filename
}
