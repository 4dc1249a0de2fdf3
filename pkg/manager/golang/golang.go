package golang

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
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
	Moniker = "go"

	// IndexURL is the go.dev download listing
	IndexURL = "https://go.dev/dl/"
)

// Manager resolves, downloads and installs Go toolchain archives from the
// go.dev download index
type Manager struct {
	ctx *cache.Context

	// IndexURL defaults to the public go.dev listing
	IndexURL string
}

// New creates a Go manager backed by the given cache directory
func New(cacheDir string) *Manager {
	return NewWithContext(cache.NewContext(cacheDir))
}

// NewWithContext creates a Go manager over an existing cache context
func NewWithContext(ctx *cache.Context) *Manager {
	return &Manager{ctx: ctx, IndexURL: IndexURL}
}

// Name returns the toolchain moniker
func (m *Manager) Name() string {
	return Moniker
}

// indexFile is one downloadable file of a release in the go.dev index.
// Only "archive" kind files are installable; "installer" and "source" are
// skipped.
type indexFile struct {
	Filename string `json:"filename"`
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	Version  string `json:"version"`
	SHA256   string `json:"sha256"`
	Size     int64  `json:"size"`
	Kind     string `json:"kind"`
}

// indexRelease is one release of the go.dev index
type indexRelease struct {
	Version string      `json:"version"`
	Stable  bool        `json:"stable"`
	Files   []indexFile `json:"files"`
}

// pkgEntry is an index file with its parsed version and download URL
type pkgEntry struct {
	file    indexFile
	url     string
	version *version.GoVersion
}

func (m *Manager) getIndex(opts manager.Options) ([]indexRelease, error) {
	downloadOpts := cache.DownloadOptions{
		Update: opts.Update,
		Accept: "application/json",
		Query: url.Values{
			"include": []string{"all"},
			"mode":    []string{"json"},
		},
		Task: opts.Task,
	}
	path, err := m.ctx.DownloadFile(m.IndexURL, downloadOpts)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	var releases []indexRelease
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, &manager.ErrParse{Path: path, Cause: err}
	}
	return releases, nil
}

// matchingEntries returns the archive files matching the platform os/arch
// tags plus any extra filter tokens, newest version first
func (m *Manager) matchingEntries(releases []indexRelease, tagFilter manager.TagFilter) ([]pkgEntry, error) {
	required := platform.GoTags(platform.Current()).Union(platform.NewTagSet(tagFilter...))

	var entries []pkgEntry
	for _, release := range releases {
		for _, file := range release.Files {
			if file.Kind != "archive" {
				continue
			}
			tags := platform.NewTagSet(file.Arch, file.OS)
			if !tags.IsSupersetOf(required) {
				continue
			}
			v, err := version.ParseGo(file.Version)
			if err != nil {
				return nil, err
			}
			entries = append(entries, pkgEntry{file: file, url: m.IndexURL + file.Filename, version: v})
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].version.Compare(entries[j].version) > 0
	})
	return entries, nil
}

func (m *Manager) classify(e pkgEntry) (manager.Availability, string, error) {
	path, err := m.ctx.GetFile(e.url)
	if err != nil {
		var notCached *cache.ErrNotCached
		if errors.As(err, &notCached) {
			return manager.Remote, "", nil
		}
		return manager.Remote, "", err
	}
	return manager.Local, path, nil
}

// UpdateIndex refetches the download listing
func (m *Manager) UpdateIndex(opts manager.Options) error {
	opts.Update = true
	_, err := m.getIndex(opts)
	return err
}

// ListTags returns the platform os/arch as defaults and every os/arch seen
// in the index as others
func (m *Manager) ListTags(opts manager.Options) (*manager.Tags, error) {
	releases, err := m.getIndex(opts)
	if err != nil {
		return nil, err
	}

	defaults := platform.GoTags(platform.Current())
	others := platform.NewTagSet()
	for _, release := range releases {
		for _, file := range release.Files {
			for _, token := range []string{file.OS, file.Arch} {
				if token != "" && !defaults.Has(token) {
					others.Add(token)
				}
			}
		}
	}

	return &manager.Tags{
		Default: defaults.Sorted(),
		Other:   others.Sorted(),
		All:     defaults.Union(others).Sorted(),
	}, nil
}

// ListPackages returns the matching packages, newest first
func (m *Manager) ListPackages(filter manager.SourceFilter, tags manager.TagFilter, opts manager.Options) ([]manager.PackageInfo, error) {
	releases, err := m.getIndex(opts)
	if err != nil {
		return nil, err
	}
	entries, err := m.matchingEntries(releases, tags)
	if err != nil {
		return nil, err
	}

	var packages []manager.PackageInfo
	for _, e := range entries {
		availability, localPath, err := m.classify(e)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(availability) {
			continue
		}
		packages = append(packages, manager.PackageInfo{
			Name:         e.file.Filename,
			URL:          e.url,
			Version:      e.version,
			Availability: availability,
			LocalPath:    localPath,
		})
	}
	return packages, nil
}

func (m *Manager) getEntry(versionStr string, tags manager.TagFilter, opts manager.Options) (*pkgEntry, error) {
	requested, err := version.ParseGo(versionStr)
	if err != nil {
		return nil, err
	}

	releases, err := m.getIndex(opts)
	if err != nil {
		return nil, err
	}
	entries, err := m.matchingEntries(releases, tags)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.version.Compare(requested) == 0 {
			return &e, nil
		}
	}
	return nil, nil
}

// GetPackage returns the package for an exact version, or nil when absent
func (m *Manager) GetPackage(versionStr string, tags manager.TagFilter, opts manager.Options) (*manager.PackageInfo, error) {
	e, err := m.getEntry(versionStr, tags, opts)
	if err != nil || e == nil {
		return nil, err
	}
	availability, localPath, err := m.classify(*e)
	if err != nil {
		return nil, err
	}
	return &manager.PackageInfo{
		Name:         e.file.Filename,
		URL:          e.url,
		Version:      e.version,
		Availability: availability,
		LocalPath:    localPath,
	}, nil
}

// DownloadPackage caches the archive for the version, verifying the sha256
// recorded in the index
func (m *Manager) DownloadPackage(versionStr string, tags manager.TagFilter, opts manager.Options) error {
	e, err := m.getEntry(versionStr, tags, opts)
	if err != nil {
		return err
	}
	if e == nil {
		return &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	c, err := checksum.Parse(e.file.SHA256)
	if err != nil {
		return err
	}
	_, err = m.ctx.DownloadFile(e.url, cache.DownloadOptions{Checksum: c, Task: opts.Task})
	return err
}

// InstallPackage unpacks the archive into dir, downloading it first when it
// is not cached
func (m *Manager) InstallPackage(versionStr string, tags manager.TagFilter, dir string, opts manager.Options) (*manager.Package, error) {
	e, err := m.getEntry(versionStr, tags, opts)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	archivePath, err := m.ctx.GetFile(e.url)
	if err != nil {
		var notCached *cache.ErrNotCached
		if !errors.As(err, &notCached) {
			return nil, err
		}
		if err := m.DownloadPackage(versionStr, tags, opts); err != nil {
			return nil, err
		}
		archivePath, err = m.ctx.GetFile(e.url)
		if err != nil {
			return nil, err
		}
	}

	if err := archive.Unpack(archivePath, dir, archive.UnpackOptions{Strip: 1}, opts.Task); err != nil {
		return nil, err
	}

	return &manager.Package{
		Name:    e.file.Filename,
		Version: e.version,
		Dir:     dir,
		Properties: map[string]any{
			"version": e.version.String(),
			"dir":     filepath.Base(dir),
		},
	}, nil
}
