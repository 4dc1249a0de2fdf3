package java

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/flanksource/toolchains/pkg/cache"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
)

func testArchive(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	content := "ELF"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "jdk-17.0.7+7/bin/java", Mode: 0755, Size: int64(len(content))}))
	_, err := tw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// releaseJSON builds one Adoptium release entry
func releaseJSON(version, name, link, checksum string) string {
	return fmt.Sprintf(`{
		"binaries": [{"package": {"name": %q, "link": %q, "size": 1, "checksum": %q}}],
		"version_data": {"openjdk_version": %q}
	}`, name, link, checksum, version)
}

func newTestManager(t *testing.T) (*Manager, *int) {
	t.Helper()

	platform.SetGlobalOverrides("linux", "amd64")
	t.Cleanup(func() { platform.SetGlobalOverrides("", "") })

	archiveBytes := testArchive(t)
	digest := sha256.Sum256(archiveBytes)
	hexDigest := hex.EncodeToString(digest[:])

	listRequests := 0
	var server *httptest.Server
	mux := http.NewServeMux()
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/v3/assets/version/", func(w http.ResponseWriter, r *http.Request) {
		listRequests++
		assert.Equal(t, "x64", r.URL.Query().Get("architecture"))
		assert.Equal(t, "linux", r.URL.Query().Get("os"))

		switch r.URL.Query().Get("page") {
		case "", "1":
			next := r.URL.Query()
			next.Set("page", "2")
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?%s>; rel="next"`, server.URL, r.URL.EscapedPath(), next.Encode()))
			fmt.Fprintf(w, "[%s]", releaseJSON(
				"17.0.7+7",
				"OpenJDK17U-jdk_x64_linux_hotspot_17.0.7_7.tar.gz",
				server.URL+"/download/OpenJDK17U-jdk_x64_linux_hotspot_17.0.7_7.tar.gz",
				hexDigest,
			))
		default:
			fmt.Fprintf(w, "[%s]", releaseJSON(
				"11.0.19+7",
				"OpenJDK11U-jdk_x64_linux_hotspot_11.0.19_7.tar.gz",
				server.URL+"/download/OpenJDK11U-jdk_x64_linux_hotspot_11.0.19_7.tar.gz",
				hexDigest,
			))
		}
	})

	mux.HandleFunc("/download/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(archiveBytes)
	})

	ctx := cache.NewContext(t.TempDir(), cache.WithClient(server.Client()))
	mgr := NewWithContext(ctx)
	mgr.ServerURL = server.URL
	return mgr, &listRequests
}

func TestListPackagesPaginated(t *testing.T) {
	mgr, listRequests := newTestManager(t)

	packages, err := mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, "17.0.7+7", packages[0].Version.String())
	assert.Equal(t, "11.0.19+7", packages[1].Version.String())
	assert.Equal(t, 2, *listRequests, "both pages are fetched")
}

func TestIndexIsCachedOnDisk(t *testing.T) {
	mgr, listRequests := newTestManager(t)

	_, err := mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, *listRequests)

	// A fresh index is served from disk without contacting the API
	_, err = mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, *listRequests)
}

func TestIndexRefreshWhenStale(t *testing.T) {
	mgr, listRequests := newTestManager(t)

	_, err := mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	require.Equal(t, 2, *listRequests)

	// Age the on-disk index past the freshness window
	indexPath := filepath.Join(mgr.ctx.Dir(), IndexFileName)
	index, err := loadIndex(indexPath)
	require.NoError(t, err)
	index.LastUpdatedAt = time.Now().Add(-13 * time.Hour)
	data, err := yaml.Marshal(index)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(indexPath, data, 0644))

	_, err = mgr.ListPackages(manager.All, nil, manager.Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, *listRequests, "a stale index triggers a refresh")
}

func TestDownloadAndInstall(t *testing.T) {
	mgr, _ := newTestManager(t)

	require.NoError(t, mgr.DownloadPackage("17.0.7+7", nil, manager.Options{}))

	pkg, err := mgr.GetPackage("17.0.7+7", nil, manager.Options{})
	require.NoError(t, err)
	require.NotNil(t, pkg)
	assert.Equal(t, manager.Local, pkg.Availability)

	dir := filepath.Join(t.TempDir(), "java")
	installed, err := mgr.InstallPackage("17.0.7+7", nil, dir, manager.Options{})
	require.NoError(t, err)
	assert.Equal(t, "17.0.7+7", installed.Version.String())
	assert.Equal(t, "java", installed.Properties["dir"])
	assert.FileExists(t, filepath.Join(dir, "bin", "java"))
}

func TestGetPackageNotFound(t *testing.T) {
	mgr, _ := newTestManager(t)

	pkg, err := mgr.GetPackage("99+1", nil, manager.Options{})
	require.NoError(t, err)
	assert.Nil(t, pkg)

	err = mgr.DownloadPackage("99+1", nil, manager.Options{})
	var notFound *manager.ErrVersionNotFound
	assert.ErrorAs(t, err, &notFound)
}
