package java

import (
	"net/url"

	"github.com/flanksource/toolchains/pkg/platform"
)

// Query holds the Adoptium API query parameters. Empty fields are omitted
// from the request.
type Query struct {
	Architecture string
	HeapSize     string
	ImageType    string
	JvmImpl      string
	OS           string
	Project      string
	ReleaseType  string
	SortMethod   string
	SortOrder    string
	Vendor       string
	Version      string
}

// DefaultQuery returns the query selecting GA Eclipse Temurin JDK builds for
// the given platform, newest first
func DefaultQuery(p platform.Platform) Query {
	p = p.Normalize()

	arch := p.Arch
	switch p.Arch {
	case "amd64":
		arch = "x64"
	case "arm64":
		arch = "aarch64"
	}

	os := p.OS
	if p.OS == "darwin" {
		os = "mac"
	}

	return Query{
		Architecture: arch,
		HeapSize:     "normal",
		ImageType:    "jdk",
		JvmImpl:      "hotspot",
		OS:           os,
		Project:      "jdk",
		ReleaseType:  "ga",
		SortMethod:   "DEFAULT",
		SortOrder:    "DESC",
		Vendor:       "eclipse",
	}
}

// Values encodes the query as URL query parameters
func (q Query) Values() url.Values {
	values := url.Values{}
	add := func(key, value string) {
		if value != "" {
			values.Set(key, value)
		}
	}
	add("architecture", q.Architecture)
	add("heap_size", q.HeapSize)
	add("image_type", q.ImageType)
	add("jvm_impl", q.JvmImpl)
	add("os", q.OS)
	add("project", q.Project)
	add("release_type", q.ReleaseType)
	add("sort_method", q.SortMethod)
	add("sort_order", q.SortOrder)
	add("vendor", q.Vendor)
	add("version", q.Version)
	return values
}
