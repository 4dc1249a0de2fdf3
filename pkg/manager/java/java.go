package java

import (
	"errors"
	"path/filepath"
	"sort"

	"github.com/flanksource/toolchains/pkg/archive"
	"github.com/flanksource/toolchains/pkg/cache"
	"github.com/flanksource/toolchains/pkg/checksum"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
	"github.com/flanksource/toolchains/pkg/version"
)

const (
	// Moniker identifies this toolchain
	Moniker = "java"

	// ServerURL is the Adoptium API server
	ServerURL = "https://api.adoptium.net"
)

// Manager resolves, downloads and installs Eclipse Temurin JDK archives via
// the Adoptium API
type Manager struct {
	ctx *cache.Context

	// ServerURL defaults to the public Adoptium API
	ServerURL string
}

// New creates a Java manager backed by the given cache directory
func New(cacheDir string) *Manager {
	return NewWithContext(cache.NewContext(cacheDir))
}

// NewWithContext creates a Java manager over an existing cache context
func NewWithContext(ctx *cache.Context) *Manager {
	return &Manager{ctx: ctx, ServerURL: ServerURL}
}

// Name returns the toolchain moniker
func (m *Manager) Name() string {
	return Moniker
}

// entry pairs an index entry with its parsed version
type entry struct {
	index   IndexVersion
	version *version.JavaVersion
}

// entries parses and orders the index versions, newest first
func entries(index *Index) ([]entry, error) {
	result := make([]entry, 0, len(index.Versions))
	for _, iv := range index.Versions {
		v, err := version.ParseJava(iv.OpenJDKVersion)
		if err != nil {
			return nil, err
		}
		result = append(result, entry{index: iv, version: v})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].version.Compare(result[j].version) > 0
	})
	return result, nil
}

func (m *Manager) classify(e entry) (manager.Availability, string, error) {
	path, err := m.ctx.GetFile(e.index.URL)
	if err != nil {
		var notCached *cache.ErrNotCached
		if errors.As(err, &notCached) {
			return manager.Remote, "", nil
		}
		return manager.Remote, "", err
	}
	return manager.Local, path, nil
}

// UpdateIndex refetches the consolidated Adoptium index
func (m *Manager) UpdateIndex(opts manager.Options) error {
	opts.Update = true
	_, err := m.readIndex(opts)
	return err
}

// ListTags returns the query defaults for this platform; the Adoptium API
// accepts the image types as explicit tags
func (m *Manager) ListTags(opts manager.Options) (*manager.Tags, error) {
	query := DefaultQuery(platform.Current())
	defaults := platform.NewTagSet(query.Architecture, query.OS, query.ImageType, query.JvmImpl, query.Vendor)
	others := platform.NewTagSet("jre")

	return &manager.Tags{
		Default: defaults.Sorted(),
		Other:   others.Sorted(),
		All:     defaults.Union(others).Sorted(),
	}, nil
}

// ListPackages returns the matching packages, newest first. The platform
// filter is applied server-side by the Adoptium query. The tag filter is not
// applied: the index holds the default query's image type only.
func (m *Manager) ListPackages(filter manager.SourceFilter, tags manager.TagFilter, opts manager.Options) ([]manager.PackageInfo, error) {
	index, err := m.readIndex(opts)
	if err != nil {
		return nil, err
	}
	parsed, err := entries(index)
	if err != nil {
		return nil, err
	}

	var packages []manager.PackageInfo
	for _, e := range parsed {
		availability, localPath, err := m.classify(e)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(availability) {
			continue
		}
		packages = append(packages, manager.PackageInfo{
			Name:         e.index.FileName,
			URL:          e.index.URL,
			Version:      e.version,
			Availability: availability,
			LocalPath:    localPath,
		})
	}
	return packages, nil
}

func (m *Manager) getEntry(versionStr string, opts manager.Options) (*entry, error) {
	requested, err := version.ParseJava(versionStr)
	if err != nil {
		return nil, err
	}

	index, err := m.readIndex(opts)
	if err != nil {
		return nil, err
	}
	parsed, err := entries(index)
	if err != nil {
		return nil, err
	}
	for _, e := range parsed {
		if e.version.Compare(requested) == 0 {
			return &e, nil
		}
	}
	return nil, nil
}

// GetPackage returns the package for an exact version, or nil when absent
func (m *Manager) GetPackage(versionStr string, tags manager.TagFilter, opts manager.Options) (*manager.PackageInfo, error) {
	e, err := m.getEntry(versionStr, opts)
	if err != nil || e == nil {
		return nil, err
	}
	availability, localPath, err := m.classify(*e)
	if err != nil {
		return nil, err
	}
	return &manager.PackageInfo{
		Name:         e.index.FileName,
		URL:          e.index.URL,
		Version:      e.version,
		Availability: availability,
		LocalPath:    localPath,
	}, nil
}

// DownloadPackage caches the archive for the version, verifying the checksum
// recorded in the index
func (m *Manager) DownloadPackage(versionStr string, tags manager.TagFilter, opts manager.Options) error {
	e, err := m.getEntry(versionStr, opts)
	if err != nil {
		return err
	}
	if e == nil {
		return &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	c, err := checksum.Parse(e.index.Checksum)
	if err != nil {
		return err
	}
	_, err = m.ctx.DownloadFile(e.index.URL, cache.DownloadOptions{Checksum: c, Task: opts.Task})
	return err
}

// InstallPackage unpacks the archive into dir, downloading it first when it
// is not cached
func (m *Manager) InstallPackage(versionStr string, tags manager.TagFilter, dir string, opts manager.Options) (*manager.Package, error) {
	e, err := m.getEntry(versionStr, opts)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	archivePath, err := m.ctx.GetFile(e.index.URL)
	if err != nil {
		var notCached *cache.ErrNotCached
		if !errors.As(err, &notCached) {
			return nil, err
		}
		if err := m.DownloadPackage(versionStr, tags, opts); err != nil {
			return nil, err
		}
		archivePath, err = m.ctx.GetFile(e.index.URL)
		if err != nil {
			return nil, err
		}
	}

	if err := archive.Unpack(archivePath, dir, archive.UnpackOptions{Strip: 1}, opts.Task); err != nil {
		return nil, err
	}

	return &manager.Package{
		Name:    e.index.FileName,
		Version: e.version,
		Dir:     dir,
		Properties: map[string]any{
			"version": e.version.String(),
			"dir":     filepath.Base(dir),
		},
	}, nil
}
