package manager

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

// PackageManager is the uniform contract implemented per toolchain. Version
// arguments are toolchain-version strings; each manager parses them with its
// own grammar.
type PackageManager interface {
	// Name returns the toolchain moniker
	Name() string

	// UpdateIndex refetches the upstream index unconditionally
	UpdateIndex(opts Options) error

	// ListTags returns the tags known to this manager
	ListTags(opts Options) (*Tags, error)

	// ListPackages returns the packages matching the platform and the tag
	// filter, newest first
	ListPackages(filter SourceFilter, tags TagFilter, opts Options) ([]PackageInfo, error)

	// GetPackage returns the package for an exact version, or nil when no
	// package matches
	GetPackage(version string, tags TagFilter, opts Options) (*PackageInfo, error)

	// DownloadPackage ensures the package for the version is cached,
	// verifying its checksum
	DownloadPackage(version string, tags TagFilter, opts Options) error

	// InstallPackage unpacks the cached package into dir, downloading it
	// first if necessary
	InstallPackage(version string, tags TagFilter, dir string, opts Options) (*Package, error)
}

// Factory constructs a manager bound to a per-toolchain cache directory
type Factory func(cacheDir string) PackageManager

// Registry resolves monikers to package-manager factories. The moniker set is
// closed; registration happens in each toolchain package's init.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for a moniker
func (r *Registry) Register(moniker string, factory Factory) {
	r.factories[moniker] = factory
}

// Monikers returns the registered monikers, sorted
func (r *Registry) Monikers() []string {
	monikers := make([]string, 0, len(r.factories))
	for moniker := range r.factories {
		monikers = append(monikers, moniker)
	}
	sort.Strings(monikers)
	return monikers
}

// NewPackageManager constructs a fresh manager for the moniker, bound to the
// per-toolchain cache directory cacheDir
func (r *Registry) NewPackageManager(moniker, cacheDir string) (PackageManager, error) {
	factory, exists := r.factories[moniker]
	if !exists {
		return nil, &ErrManagerNotFound{Moniker: moniker, Suggestion: r.suggest(moniker)}
	}
	return factory(cacheDir), nil
}

// suggest returns the closest registered moniker within edit distance 2
func (r *Registry) suggest(moniker string) string {
	best := ""
	bestDistance := 3
	for _, candidate := range r.Monikers() {
		if d := levenshtein.ComputeDistance(moniker, candidate); d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}

// Global package manager registry
var globalRegistry = NewRegistry()

// Register adds a factory to the global registry
func Register(moniker string, factory Factory) {
	globalRegistry.Register(moniker, factory)
}

// GetGlobalRegistry returns the global package manager registry
func GetGlobalRegistry() *Registry {
	return globalRegistry
}
