package manager

import (
	"github.com/flanksource/clicky/task"
	"github.com/flanksource/toolchains/pkg/version"
)

// Availability classifies whether a package's archive is already cached
type Availability int

const (
	Remote Availability = iota
	Local
)

func (a Availability) String() string {
	if a == Local {
		return "local"
	}
	return "remote"
}

// SourceFilter selects packages by cache residency
type SourceFilter int

const (
	All SourceFilter = iota
	LocalOnly
	RemoteOnly
)

// Matches reports whether a package with the given availability passes the
// filter
func (f SourceFilter) Matches(availability Availability) bool {
	switch f {
	case LocalOnly:
		return availability == Local
	case RemoteOnly:
		return availability == Remote
	default:
		return true
	}
}

// TagFilter supplies additional required tokens beyond the platform tag set
type TagFilter []string

// Tags groups the tags a manager knows about
type Tags struct {
	// Default tags are implied by the current platform
	Default []string
	// Other tags may be passed explicitly via a TagFilter
	Other []string
	// All is the union
	All []string
}

// PackageInfo describes one installable package in the index
type PackageInfo struct {
	// Name is the upstream archive file name
	Name string
	// URL is the download location
	URL string
	// Version is the parsed toolchain version
	Version version.Version
	// Availability records whether the archive is cached locally
	Availability Availability
	// LocalPath is the cached archive path when Availability is Local
	LocalPath string
}

// Package is an installed toolchain
type Package struct {
	// Name is the archive the installation came from
	Name string
	// Version is the installed version
	Version version.Version
	// Dir is the installation directory
	Dir string
	// Properties are the toolchain-specific env-projection inputs persisted
	// in the data directory's env record
	Properties map[string]any
}

// Options configures a single manager operation
type Options struct {
	// Update bypasses cached indices and refetches
	Update bool
	// Task receives progress updates; nil disables progress
	Task *task.Task
}
