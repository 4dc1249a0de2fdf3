package java

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flanksource/toolchains/pkg/platform"
)

func TestDefaultQuery(t *testing.T) {
	q := DefaultQuery(platform.Platform{OS: "linux", Arch: "amd64"})
	assert.Equal(t, "x64", q.Architecture)
	assert.Equal(t, "linux", q.OS)

	q = DefaultQuery(platform.Platform{OS: "darwin", Arch: "arm64"})
	assert.Equal(t, "aarch64", q.Architecture)
	assert.Equal(t, "mac", q.OS)

	q = DefaultQuery(platform.Platform{OS: "windows", Arch: "amd64"})
	assert.Equal(t, "windows", q.OS)
}

func TestQueryValues(t *testing.T) {
	values := DefaultQuery(platform.Platform{OS: "linux", Arch: "amd64"}).Values()

	expected := map[string]string{
		"architecture": "x64",
		"heap_size":    "normal",
		"image_type":   "jdk",
		"jvm_impl":     "hotspot",
		"os":           "linux",
		"project":      "jdk",
		"release_type": "ga",
		"sort_method":  "DEFAULT",
		"sort_order":   "DESC",
		"vendor":       "eclipse",
	}
	assert.Len(t, values, len(expected))
	for key, value := range expected {
		assert.Equal(t, value, values.Get(key), key)
	}

	// Empty fields are omitted
	q := Query{Architecture: "x64"}
	assert.Len(t, q.Values(), 1)
}
