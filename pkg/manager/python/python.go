package python

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/google/go-github/v57/github"
	"github.com/samber/lo"

	"github.com/flanksource/toolchains/pkg/archive"
	"github.com/flanksource/toolchains/pkg/cache"
	"github.com/flanksource/toolchains/pkg/checksum"
	depshttp "github.com/flanksource/toolchains/pkg/http"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
	"github.com/flanksource/toolchains/pkg/version"
)

const (
	// Moniker identifies this toolchain
	Moniker = "python"

	// IndexURL is the python-build-standalone releases listing
	IndexURL = "https://api.github.com/repos/astral-sh/python-build-standalone/releases"

	// ChecksumBaseURL hosts one {group}.sha256sums file per release group
	ChecksumBaseURL = "https://blog.rcook.org/assets/isopy"
)

// Manager resolves, downloads and installs python-build-standalone archives
type Manager struct {
	ctx *cache.Context

	// IndexURL and ChecksumBaseURL default to the public endpoints
	IndexURL        string
	ChecksumBaseURL string
}

// New creates a Python manager backed by the given cache directory. The
// GitHub releases API is rate limited for anonymous callers, so the context
// authenticates when GITHUB_TOKEN is set.
func New(cacheDir string) *Manager {
	return NewWithContext(cache.NewContext(cacheDir, cache.WithClient(depshttp.GetGithubClient())))
}

// NewWithContext creates a Python manager over an existing cache context
func NewWithContext(ctx *cache.Context) *Manager {
	return &Manager{
		ctx:             ctx,
		IndexURL:        IndexURL,
		ChecksumBaseURL: ChecksumBaseURL,
	}
}

// Name returns the toolchain moniker
func (m *Manager) Name() string {
	return Moniker
}

// asset pairs an archive's metadata with its download URL
type asset struct {
	meta *AssetMeta
	url  string
}

// getIndex fetches and parses the release index, honoring the cache unless
// update is set
func (m *Manager) getIndex(opts manager.Options) ([]*github.RepositoryRelease, error) {
	downloadOpts := cache.JSONOptions(opts.Update)
	downloadOpts.Task = opts.Task
	path, err := m.ctx.DownloadFile(m.IndexURL, downloadOpts)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read index %s: %w", path, err)
	}

	var releases []*github.RepositoryRelease
	if err := json.Unmarshal(data, &releases); err != nil {
		return nil, &manager.ErrParse{Path: path, Cause: err}
	}
	return releases, nil
}

// getAssets extracts the package archives of one release
func getAssets(release *github.RepositoryRelease) ([]asset, error) {
	var assets []asset
	for _, a := range release.Assets {
		name := a.GetName()
		if !IsIndexAsset(name) {
			continue
		}
		meta, err := ParseAssetName(name)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset{meta: meta, url: a.GetBrowserDownloadURL()})
	}
	return assets, nil
}

// matchingAssets returns the assets whose tag sets cover the platform tags
// plus any extra filter tokens, newest version first. Within one full version
// the Windows shared/static tiebreak keeps a single survivor.
func (m *Manager) matchingAssets(releases []*github.RepositoryRelease, tagFilter manager.TagFilter) ([]asset, error) {
	required := platform.PythonTags(platform.Current())
	if required == nil {
		return nil, fmt.Errorf("unsupported platform %s", platform.Current())
	}
	required = required.Union(platform.NewTagSet(tagFilter...))

	var matched []asset
	for _, release := range releases {
		assets, err := getAssets(release)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			if a.meta.Tags.IsSupersetOf(required) {
				matched = append(matched, a)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if c := matched[i].meta.Version.Compare(matched[j].meta.Version); c != 0 {
			return c > 0
		}
		return matched[i].meta.variantRank() < matched[j].meta.variantRank()
	})

	// Keep one survivor per full version
	return lo.UniqBy(matched, func(a asset) string {
		return a.meta.Version.String()
	}), nil
}

// classify determines cache residency for an asset
func (m *Manager) classify(a asset) (manager.Availability, string, error) {
	path, err := m.ctx.GetFile(a.url)
	if err != nil {
		var notCached *cache.ErrNotCached
		if errors.As(err, &notCached) {
			return manager.Remote, "", nil
		}
		return manager.Remote, "", err
	}
	return manager.Local, path, nil
}

// UpdateIndex refetches the release index
func (m *Manager) UpdateIndex(opts manager.Options) error {
	opts.Update = true
	_, err := m.getIndex(opts)
	return err
}

// ListTags returns the platform tags as defaults and the known release
// groups and file-name keywords as others
func (m *Manager) ListTags(opts manager.Options) (*manager.Tags, error) {
	releases, err := m.getIndex(opts)
	if err != nil {
		return nil, err
	}

	defaults := platform.PythonTags(platform.Current())
	others := platform.NewTagSet()
	for _, release := range releases {
		others.Add(release.GetTagName())
		assets, err := getAssets(release)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			for token := range a.meta.Tags {
				if !defaults.Has(token) {
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
	matched, err := m.matchingAssets(releases, tags)
	if err != nil {
		return nil, err
	}

	var packages []manager.PackageInfo
	for _, a := range matched {
		availability, localPath, err := m.classify(a)
		if err != nil {
			return nil, err
		}
		if !filter.Matches(availability) {
			continue
		}
		packages = append(packages, manager.PackageInfo{
			Name:         a.meta.Name,
			URL:          a.url,
			Version:      a.meta.Version,
			Availability: availability,
			LocalPath:    localPath,
		})
	}
	return packages, nil
}

// getAsset selects the asset for a version spec. A spec without a release
// group matches the newest group of that version.
func (m *Manager) getAsset(versionStr string, tags manager.TagFilter, opts manager.Options) (*asset, error) {
	requested, err := version.ParsePython(versionStr)
	if err != nil {
		return nil, err
	}

	releases, err := m.getIndex(opts)
	if err != nil {
		return nil, err
	}
	matched, err := m.matchingAssets(releases, tags)
	if err != nil {
		return nil, err
	}

	for _, a := range matched {
		if requested.Group != nil {
			if a.meta.Version.Compare(requested) == 0 {
				return &a, nil
			}
			continue
		}
		if a.meta.Version.MatchesBase(requested) {
			// matchingAssets is newest-first, so the first base match
			// carries the freshest release group
			return &a, nil
		}
	}
	return nil, nil
}

// GetPackage returns the package for an exact version, or nil when absent
func (m *Manager) GetPackage(versionStr string, tags manager.TagFilter, opts manager.Options) (*manager.PackageInfo, error) {
	a, err := m.getAsset(versionStr, tags, opts)
	if err != nil || a == nil {
		return nil, err
	}
	availability, localPath, err := m.classify(*a)
	if err != nil {
		return nil, err
	}
	return &manager.PackageInfo{
		Name:         a.meta.Name,
		URL:          a.url,
		Version:      a.meta.Version,
		Availability: availability,
		LocalPath:    localPath,
	}, nil
}

// getChecksum fetches the release group's sha256sums file and indexes it by
// archive name
func (m *Manager) getChecksum(a *asset, opts manager.Options) (*checksum.Checksum, error) {
	if a.meta.Version.Group == nil {
		return nil, fmt.Errorf("package %s has no release group", a.meta.Name)
	}
	group := a.meta.Version.Group.String()
	url := fmt.Sprintf("%s/%s.sha256sums", m.ChecksumBaseURL, group)

	path, err := m.ctx.DownloadFile(url, cache.DownloadOptions{Task: opts.Task})
	if err != nil {
		return nil, err
	}
	sums, err := checksum.ParseSumsFile(path)
	if err != nil {
		return nil, err
	}
	c, ok := sums.Lookup(a.meta.Name)
	if !ok {
		return nil, fmt.Errorf("no checksum found for archive %s in %s", a.meta.Name, url)
	}
	return c, nil
}

// DownloadPackage caches the archive for the version, verifying its checksum
func (m *Manager) DownloadPackage(versionStr string, tags manager.TagFilter, opts manager.Options) error {
	a, err := m.getAsset(versionStr, tags, opts)
	if err != nil {
		return err
	}
	if a == nil {
		return &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	c, err := m.getChecksum(a, opts)
	if err != nil {
		return err
	}
	_, err = m.ctx.DownloadFile(a.url, cache.DownloadOptions{Checksum: c, Task: opts.Task})
	return err
}

// InstallPackage unpacks the archive into dir, downloading it first when it
// is not cached
func (m *Manager) InstallPackage(versionStr string, tags manager.TagFilter, dir string, opts manager.Options) (*manager.Package, error) {
	a, err := m.getAsset(versionStr, tags, opts)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, &manager.ErrVersionNotFound{Moniker: Moniker, Version: versionStr}
	}

	archivePath, err := m.ctx.GetFile(a.url)
	if err != nil {
		var notCached *cache.ErrNotCached
		if !errors.As(err, &notCached) {
			return nil, err
		}
		if err := m.DownloadPackage(versionStr, tags, opts); err != nil {
			return nil, err
		}
		archivePath, err = m.ctx.GetFile(a.url)
		if err != nil {
			return nil, err
		}
	}

	if err := archive.Unpack(archivePath, dir, archive.UnpackOptions{Strip: 1}, opts.Task); err != nil {
		return nil, err
	}

	return &manager.Package{
		Name:    a.meta.Name,
		Version: a.meta.Version,
		Dir:     dir,
		Properties: map[string]any{
			"version": a.meta.Version.String(),
		},
	}, nil
}
