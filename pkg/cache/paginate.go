package cache

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flanksource/commons/logger"
)

// PaginationPartPrefix names the per-page files of a paginated download
const PaginationPartPrefix = "part-"

// PaginatedResult lists the page files of a paginated download in order
type PaginatedResult struct {
	Dir   string
	Parts []string
}

// partFileName formats the 4-digit page file name, starting at part-0001
func partFileName(page int) string {
	return fmt.Sprintf("%s%04d", PaginationPartPrefix, page)
}

// DownloadPaginated follows Link: rel="next" headers from rawURL, writing one
// part file per page under a URL-specific subdirectory of the cache. Existing
// parts are replaced.
func (c *Context) DownloadPaginated(rawURL string, opts DownloadOptions) (*PaginatedResult, error) {
	parts, err := SplitURL(rawURL)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(c.dir, parts.Prefix+parts.Suffix)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create pagination directory %s: %w", dir, err)
	}

	result := &PaginatedResult{Dir: dir}
	next := rawURL
	query := opts.Query
	for page := 1; next != ""; page++ {
		outputPath := filepath.Join(dir, partFileName(page))
		next, err = c.downloadPart(next, outputPath, opts.Accept, query)
		if err != nil {
			return nil, err
		}
		// The next link carries the full query already
		query = nil

		empty, err := isEmptyPage(outputPath)
		if err != nil {
			return nil, err
		}
		if empty {
			// A page with zero results leaves no part file behind
			if err := os.Remove(outputPath); err != nil {
				return nil, fmt.Errorf("failed to remove empty page %s: %w", outputPath, err)
			}
			break
		}
		result.Parts = append(result.Parts, outputPath)
	}
	return result, nil
}

// isEmptyPage reports whether a page file carries no results (zero bytes or
// an empty JSON array)
func isEmptyPage(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read page %s: %w", path, err)
	}
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "[]", nil
}

// ReadPaginated resumes a previous paginated download by listing its part
// files in lexicographic order
func (c *Context) ReadPaginated(rawURL string) (*PaginatedResult, error) {
	parts, err := SplitURL(rawURL)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(c.dir, parts.Prefix+parts.Suffix)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("no paginated download found at %s: %w", dir, err)
	}

	result := &PaginatedResult{Dir: dir}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), PaginationPartPrefix) {
			result.Parts = append(result.Parts, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(result.Parts)
	return result, nil
}

// downloadPart fetches one page and returns the next page URL, if any
func (c *Context) downloadPart(rawURL, outputPath, accept string, query url.Values) (string, error) {
	requestURL := rawURL
	if len(query) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("invalid URL %s: %w", rawURL, err)
		}
		values := u.Query()
		for key, vs := range query {
			for _, value := range vs {
				values.Add(key, value)
			}
		}
		u.RawQuery = values.Encode()
		requestURL = u.String()
	}

	req, err := http.NewRequest(http.MethodGet, requestURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request for %s: %w", requestURL, err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	logger.V(3).Infof("downloading page %s", requestURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", requestURL, err)
	}
	defer resp.Body.Close()

	if err := errorForGithubRateLimit(resp); err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ErrHttpError{Status: resp.StatusCode, URL: rawURL}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", outputPath, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("failed to write %s: %w", outputPath, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", outputPath, err)
	}

	return ParseLinkHeader(resp.Header.Get("Link")).Next, nil
}
