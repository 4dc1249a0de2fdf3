package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flanksource/toolchains/pkg/checksum"
)

func newTestContext(t *testing.T, handler http.Handler) (*Context, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	ctx := NewContext(t.TempDir(), WithClient(server.Client()))
	return ctx, server
}

func mustChecksum(t *testing.T, data []byte) *checksum.Checksum {
	t.Helper()
	digest := sha256.Sum256(data)
	c, err := checksum.Parse(hex.EncodeToString(digest[:]))
	require.NoError(t, err)
	return c
}

func TestDownloadFileCachedHitIssuesNoRequest(t *testing.T) {
	requests := 0
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte("payload"))
	}))

	url := server.URL + "/x.tgz"
	first, err := ctx.DownloadFile(url, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, requests)

	second, err := ctx.DownloadFile(url, DownloadOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, requests, "cache hit must not issue an HTTP request")
}

func TestDownloadFileUpdateRefetchesUnderNewName(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))

	url := server.URL + "/y.tgz"
	first, err := ctx.DownloadFile(url, DownloadOptions{})
	require.NoError(t, err)

	second, err := ctx.DownloadFile(url, DownloadOptions{Update: true})
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "refetch allocates a fresh unique name")
	assert.Contains(t, filepath.Base(second), "-00001")

	// The freshest file is now the current one
	current, err := ctx.GetFile(url)
	require.NoError(t, err)
	assert.Equal(t, second, current)
}

func TestDownloadFileWithChecksum(t *testing.T) {
	payload := []byte("verified bytes")
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))

	url := server.URL + "/y.tgz"
	path, err := ctx.DownloadFile(url, DownloadOptions{Checksum: mustChecksum(t, payload)})
	require.NoError(t, err)

	digest, err := checksum.SumFileHex(path)
	require.NoError(t, err)
	expected := sha256.Sum256(payload)
	assert.Equal(t, hex.EncodeToString(expected[:]), digest)

	manifest, err := loadManifest(ctx.Dir())
	require.NoError(t, err)
	require.Len(t, manifest.Downloads, 1)
	assert.Equal(t, url, manifest.Downloads[0].URL)
	require.Len(t, manifest.Downloads[0].Files, 1)
	assert.Equal(t, filepath.Base(path), manifest.Downloads[0].Files[0].FileName)
}

func TestDownloadFileChecksumFailureCleansUp(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("tampered bytes"))
	}))

	url := server.URL + "/z.tgz"
	_, err := ctx.DownloadFile(url, DownloadOptions{Checksum: mustChecksum(t, []byte("expected bytes"))})

	var checksumErr *ErrChecksumValidationFailed
	require.ErrorAs(t, err, &checksumErr)
	assert.NoFileExists(t, checksumErr.Path)

	manifest, err := loadManifest(ctx.Dir())
	require.NoError(t, err)
	assert.Empty(t, manifest.Downloads, "failed download must not be recorded")

	// A subsequent GetFile still reports not cached
	_, err = ctx.GetFile(url)
	var notCached *ErrNotCached
	assert.ErrorAs(t, err, &notCached)
}

func TestGetFileAfterDownload(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))

	url := server.URL + "/file.tar.gz"
	path, err := ctx.DownloadFile(url, DownloadOptions{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := ctx.GetFile(url)
		require.NoError(t, err)
		assert.Equal(t, path, got)
		assert.FileExists(t, got)
	}
}

func TestCorruptCache(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))

	url := server.URL + "/file.tar.gz"
	path, err := ctx.DownloadFile(url, DownloadOptions{})
	require.NoError(t, err)

	// Remove the file behind the manifest's back
	require.NoError(t, os.Remove(path))

	var corrupt *ErrCorruptCache
	_, err = ctx.GetFile(url)
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Path)

	// The cache is not silently refetched
	_, err = ctx.DownloadFile(url, DownloadOptions{})
	assert.ErrorAs(t, err, &corrupt)
}

func TestDownloadFileHttpError(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))

	_, err := ctx.DownloadFile(server.URL+"/missing", DownloadOptions{})
	var httpErr *ErrHttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestDownloadFileRateLimited(t *testing.T) {
	reset := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-github-request-id", "ABCD:1234")
		w.Header().Set("x-ratelimit-remaining", "0")
		w.Header().Set("x-ratelimit-reset", strconv.FormatInt(reset.Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := ctx.DownloadFile(server.URL+"/api", DownloadOptions{})
	var rateLimited *ErrRateLimited
	require.ErrorAs(t, err, &rateLimited)
	assert.Equal(t, reset.UTC(), rateLimited.ResetTime)
}

func TestDownloadFilePlainForbiddenIsHttpError(t *testing.T) {
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := ctx.DownloadFile(server.URL+"/api", DownloadOptions{})
	var httpErr *ErrHttpError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Status)
}

func TestDownloadFileQueryParameters(t *testing.T) {
	var gotQuery string
	var gotAccept string
	ctx, server := newTestContext(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("{}"))
	}))

	opts := JSONOptions(false)
	opts.Query = map[string][]string{"include": {"all"}, "mode": {"json"}}
	_, err := ctx.DownloadFile(server.URL+"/dl/", opts)
	require.NoError(t, err)
	assert.Equal(t, "include=all&mode=json", gotQuery)
	assert.Equal(t, "application/json", gotAccept)
}

func TestManifestMonotoneAppend(t *testing.T) {
	dir := t.TempDir()
	manifest := &Manifest{}
	t0 := time.Now()

	manifest.append("https://h/x.tgz", "x.tgz", t0)
	manifest.append("https://h/x.tgz", "x-00001.tgz", t0.Add(time.Hour))
	require.NoError(t, manifest.save(dir))

	loaded, err := loadManifest(dir)
	require.NoError(t, err)
	require.Len(t, loaded.Downloads, 1)
	assert.Len(t, loaded.Downloads[0].Files, 2)
	assert.Equal(t, "x-00001.tgz", loaded.Downloads[0].newest().FileName)
}
