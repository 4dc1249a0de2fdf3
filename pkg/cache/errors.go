package cache

import (
	"fmt"
	"time"
)

// ErrCorruptCache is returned when the manifest references a file missing
// from disk
type ErrCorruptCache struct {
	Path string
}

func (e *ErrCorruptCache) Error() string {
	return "cache manifest references missing file: " + e.Path
}

// ErrNotCached is returned by GetFile when a URL has no cached file
type ErrNotCached struct {
	URL string
}

func (e *ErrNotCached) Error() string {
	return "file at URL not found in cache: " + e.URL
}

// ErrHttpError is returned for non-2xx responses
type ErrHttpError struct {
	Status int
	URL    string
}

func (e *ErrHttpError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Status, e.URL)
}

// ErrRateLimited is returned when the GitHub API rate limit is exhausted
type ErrRateLimited struct {
	ResetTime time.Time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("GitHub rate limit exceeded (limit resets at %s): please try again later",
		e.ResetTime.Format(time.RFC1123))
}

// ErrChecksumValidationFailed is returned after a downloaded file fails
// verification; the file has already been removed
type ErrChecksumValidationFailed struct {
	Path string
	URL  string
}

func (e *ErrChecksumValidationFailed) Error() string {
	return fmt.Sprintf("checksum validation of %s (downloaded from %s) failed", e.Path, e.URL)
}
