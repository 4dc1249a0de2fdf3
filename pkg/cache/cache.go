package cache

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/flanksource/clicky/task"
	"github.com/flanksource/commons/logger"
	"github.com/flanksource/toolchains/pkg/checksum"
	depshttp "github.com/flanksource/toolchains/pkg/http"
)

// DownloadOptions configures a single DownloadFile call
type DownloadOptions struct {
	// Update ignores any cached file and refetches
	Update bool
	// Accept overrides the HTTP Accept header
	Accept string
	// Checksum, when set, is verified after download; failures remove the
	// fetched file
	Checksum *checksum.Checksum
	// Query parameters appended to the URL
	Query url.Values
	// Task receives progress updates; nil disables progress
	Task *task.Task
}

// JSONOptions returns options requesting a JSON response
func JSONOptions(update bool) DownloadOptions {
	return DownloadOptions{Update: update, Accept: "application/json"}
}

// Context is the URL-keyed download cache consumed by every package manager.
// Files are downloaded at most once per URL and recorded in a persisted
// manifest; re-downloads allocate fresh unique names.
type Context struct {
	dir    string
	client *http.Client
	now    func() time.Time
}

// ContextOption configures a Context
type ContextOption func(*Context)

// WithClient overrides the HTTP client
func WithClient(client *http.Client) ContextOption {
	return func(c *Context) {
		c.client = client
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) ContextOption {
	return func(c *Context) {
		c.now = now
	}
}

// NewContext creates a cache context rooted at dir
func NewContext(dir string, opts ...ContextOption) *Context {
	c := &Context{
		dir:    dir,
		client: depshttp.GetHttpClient(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dir returns the cache directory
func (c *Context) Dir() string {
	return c.dir
}

// GetFile returns the cached path for url, failing if the URL has never been
// downloaded
func (c *Context) GetFile(rawURL string) (string, error) {
	path, err := c.checkCache(rawURL)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", &ErrNotCached{URL: rawURL}
	}
	return path, nil
}

// DownloadFile returns a local path for url, downloading it unless a cached
// copy exists and opts.Update is false
func (c *Context) DownloadFile(rawURL string, opts DownloadOptions) (string, error) {
	if !opts.Update {
		path, err := c.checkCache(rawURL)
		if err != nil {
			return "", err
		}
		if path != "" {
			logger.V(3).Infof("cache hit for %s: %s", rawURL, path)
			return path, nil
		}
	}

	path, err := c.makeUniquePath(rawURL)
	if err != nil {
		return "", err
	}
	downloadedAt := c.now()

	if err := c.downloadToPath(rawURL, path, opts); err != nil {
		return "", err
	}

	if opts.Checksum != nil {
		ok, err := opts.Checksum.ValidateFile(path)
		if err != nil {
			return "", err
		}
		if !ok {
			if err := os.Remove(path); err != nil {
				return "", fmt.Errorf("failed to remove invalid download %s: %w", path, err)
			}
			return "", &ErrChecksumValidationFailed{Path: path, URL: rawURL}
		}
	}

	// The manifest entry is appended only after the file is durable on disk,
	// so an abandoned download is never recorded
	manifest, err := loadManifest(c.dir)
	if err != nil {
		return "", err
	}
	manifest.append(rawURL, filepath.Base(path), downloadedAt)
	if err := manifest.save(c.dir); err != nil {
		return "", err
	}

	return path, nil
}

// checkCache returns the freshest cached path for url, "" when absent, or
// ErrCorruptCache when the manifest references a missing file
func (c *Context) checkCache(rawURL string) (string, error) {
	manifest, err := loadManifest(c.dir)
	if err != nil {
		return "", err
	}
	download := manifest.find(rawURL)
	if download == nil {
		return "", nil
	}
	file := download.newest()
	if file == nil {
		return "", nil
	}
	path := filepath.Join(c.dir, file.FileName)
	if _, err := os.Stat(path); err != nil {
		return "", &ErrCorruptCache{Path: path}
	}
	return path, nil
}

// makeUniquePath allocates an unused file name derived from the URL,
// appending -NNNNN on collision
func (c *Context) makeUniquePath(rawURL string) (string, error) {
	parts, err := SplitURL(rawURL)
	if err != nil {
		return "", err
	}
	for i := 0; ; i++ {
		fileName := parts.Prefix + parts.Suffix
		if i > 0 {
			fileName = fmt.Sprintf("%s-%05d%s", parts.Prefix, i, parts.Suffix)
		}
		path := filepath.Join(c.dir, fileName)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path, nil
		}
	}
}

func (c *Context) downloadToPath(rawURL, path string, opts DownloadOptions) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	requestURL := rawURL
	if len(opts.Query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid URL %s: %w", rawURL, err)
		}
		query := u.Query()
		for key, values := range opts.Query {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		u.RawQuery = query.Encode()
		requestURL = u.String()
	}

	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", requestURL, err)
	}
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}

	logger.V(2).Infof("downloading %s", requestURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	if err := errorForGithubRateLimit(resp); err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &ErrHttpError{Status: resp.StatusCode, URL: rawURL}
	}

	var reader io.Reader = resp.Body
	if opts.Task != nil {
		reader = newProgressReader(resp.Body, resp.ContentLength, opts.Task)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	logger.V(2).Infof("downloaded %s to %s", requestURL, path)
	return nil
}

// errorForGithubRateLimit detects an exhausted GitHub API rate limit and
// surfaces the reset time. Plain 403s from other servers pass through to the
// generic status handling.
func errorForGithubRateLimit(resp *http.Response) error {
	if resp.StatusCode != http.StatusForbidden {
		return nil
	}
	if resp.Header.Get("x-github-request-id") == "" {
		return nil
	}
	remaining := resp.Header.Get("x-ratelimit-remaining")
	if remaining != "0" {
		return nil
	}
	reset, err := strconv.ParseInt(resp.Header.Get("x-ratelimit-reset"), 10, 64)
	if err != nil {
		return nil
	}
	return &ErrRateLimited{ResetTime: time.Unix(reset, 0).UTC()}
}
