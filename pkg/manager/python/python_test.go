package python

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/toolchains/pkg/cache"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
)

// testArchive is a minimal cpython-shaped tar.gz
func testArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "#!/bin/sh\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "python/bin/python3", Mode: 0755, Size: int64(len(content))}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// newTestManager serves a two-release index plus archives and checksum files.
// Checksum requests are answered only for the exact {group}.sha256sums paths
// and recorded for assertion.
func newTestManager(t *testing.T) (*Manager, *[]string) {
	t.Helper()

	platform.SetGlobalOverrides("linux", "amd64")
	t.Cleanup(func() { platform.SetGlobalOverrides("", "") })

	archiveBytes := testArchive(t)
	digest := sha256.Sum256(archiveBytes)
	hexDigest := hex.EncodeToString(digest[:])

	names := []string{
		"cpython-3.11.1+20230116-x86_64-unknown-linux-gnu-install_only.tar.gz",
		"cpython-3.10.9+20230116-x86_64-unknown-linux-gnu-install_only.tar.gz",
		"cpython-3.10.9+20221220-x86_64-unknown-linux-gnu-install_only.tar.gz",
		"cpython-3.10.9+20230116-aarch64-apple-darwin-install_only.tar.gz",
	}

	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/releases", func(w http.ResponseWriter, r *http.Request) {
		byGroup := map[string][]*github.ReleaseAsset{}
		for _, name := range names {
			meta, err := ParseAssetName(name)
			require.NoError(t, err)
			group := meta.Version.Group.String()
			byGroup[group] = append(byGroup[group], &github.ReleaseAsset{
				Name:               github.String(name),
				BrowserDownloadURL: github.String(server.URL + "/download/" + name),
			})
		}
		var releases []*github.RepositoryRelease
		for group, assets := range byGroup {
			releases = append(releases, &github.RepositoryRelease{
				TagName: github.String(group),
				Assets:  assets,
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(releases))
	})

	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archiveBytes)
	})

	var checksumPaths []string
	mux.HandleFunc("/checksums/", func(w http.ResponseWriter, r *http.Request) {
		checksumPaths = append(checksumPaths, r.URL.Path)
		group, ok := strings.CutSuffix(path.Base(r.URL.Path), ".sha256sums")
		if !ok {
			http.NotFound(w, r)
			return
		}
		for _, name := range names {
			meta, err := ParseAssetName(name)
			require.NoError(t, err)
			if meta.Version.Group.String() == group {
				fmt.Fprintf(w, "%s  %s\n", hexDigest, name)
			}
		}
	})

	ctx := cache.NewContext(t.TempDir(), cache.WithClient(server.Client()))
	mgr := NewWithContext(ctx)
	mgr.IndexURL = server.URL + "/releases"
	mgr.ChecksumBaseURL = server.URL + "/checksums"
	return mgr, &checksumPaths
}

func TestListPackages(t *testing.T) {
	mgr, _ := newTestManager(t)

	packages, err := mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)

	// The darwin asset is filtered out; versions are newest first
	require.Len(t, packages, 3)
	assert.Equal(t, "3.11.1:20230116", packages[0].Version.String())
	assert.Equal(t, "3.10.9:20230116", packages[1].Version.String())
	assert.Equal(t, "3.10.9:20221220", packages[2].Version.String())
	for _, pkg := range packages {
		assert.Equal(t, manager.Remote, pkg.Availability)
	}
}

func TestListPackagesPlatformFilterSubset(t *testing.T) {
	mgr, _ := newTestManager(t)

	required := platform.PythonTags(platform.Current())
	packages, err := mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	for _, pkg := range packages {
		meta, err := ParseAssetName(pkg.Name)
		require.NoError(t, err)
		assert.True(t, meta.Tags.IsSupersetOf(required), pkg.Name)
	}
}

func TestGetPackagePicksNewestGroup(t *testing.T) {
	mgr, _ := newTestManager(t)

	pkg, err := mgr.GetPackage("3.10.9", nil, manager.Options{})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "3.10.9:20230116", pkg.Version.String())

	pkg, err = mgr.GetPackage("3.10.9:20221220", nil, manager.Options{})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, "3.10.9:20221220", pkg.Version.String())

	pkg, err = mgr.GetPackage("3.9.0", nil, manager.Options{})
	require.NoError(t, err)
	assert.Nil(t, pkg)
}

func TestDownloadPackageVerifiesChecksum(t *testing.T) {
	mgr, checksumPaths := newTestManager(t)

	require.NoError(t, mgr.DownloadPackage("3.10.9", nil, manager.Options{}))
	require.Equal(t, []string{"/checksums/20230116.sha256sums"}, *checksumPaths,
		"the checksum companion URL is {base}/{group}.sha256sums")

	pkg, err := mgr.GetPackage("3.10.9", nil, manager.Options{})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, manager.Local, pkg.Availability)
	assert.FileExists(t, pkg.LocalPath)
}

func TestDownloadPackageVersionNotFound(t *testing.T) {
	mgr, _ := newTestManager(t)

	err := mgr.DownloadPackage("3.9.0", nil, manager.Options{})
	var notFound *manager.ErrVersionNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "3.9.0", notFound.Version)
}

func TestInstallPackage(t *testing.T) {
	mgr, _ := newTestManager(t)
	dir := filepath.Join(t.TempDir(), "python")

	pkg, err := mgr.InstallPackage("3.11.1", nil, dir, manager.Options{})
	require.NoError(t, err)
	assert.Equal(t, "3.11.1:20230116", pkg.Version.String())
	assert.Equal(t, dir, pkg.Dir)
	assert.Equal(t, "3.11.1:20230116", pkg.Properties["version"])

	// The archive's first path component is stripped
	assert.FileExists(t, filepath.Join(dir, "bin", "python3"))
}

func TestListTags(t *testing.T) {
	mgr, _ := newTestManager(t)

	tags, err := mgr.ListTags(manager.Options{})
	require.NoError(t, err)
	assert.Contains(t, tags.Default, "x86_64")
	assert.Contains(t, tags.Default, "install_only")
	assert.Contains(t, tags.Other, "20230116")
	assert.Contains(t, tags.Other, "aarch64")
	assert.Subset(t, tags.All, tags.Default)
	assert.Subset(t, tags.All, tags.Other)
}

func TestListPackagesLocalFilter(t *testing.T) {
	mgr, _ := newTestManager(t)

	packages, err := mgr.ListPackages(manager.LocalOnly, nil, manager.Options{})
	require.NoError(t, err)
	assert.Empty(t, packages)

	require.NoError(t, mgr.DownloadPackage("3.10.9", nil, manager.Options{}))

	packages, err = mgr.ListPackages(manager.LocalOnly, nil, manager.Options{})
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "3.10.9:20230116", packages[0].Version.String())
}
