package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitFileName(t *testing.T) {
	tests := []struct {
		input  string
		prefix string
		suffix string
	}{
		{"file", "file", ""},
		{"file.tar.gz", "file", ".tar.gz"},
		{"other.file.tar.gz", "other_file", ".tar.gz"},
		{"file.txt", "file", ".txt"},
		{"file&name.t&ar.g&z", "file_name_t_ar", ".g_z"},
		{"file&&name.tar.zst", "file_name", ".tar.zst"},
	}
	for _, test := range tests {
		parts := SplitFileName(test.input)
		assert.Equal(t, test.prefix, parts.Prefix, test.input)
		assert.Equal(t, test.suffix, parts.Suffix, test.input)
	}
}

func TestSplitURL(t *testing.T) {
	tests := []struct {
		input  string
		prefix string
		suffix string
	}{
		{"http://www.foo.com/file", "http_www_foo_com_file", ""},
		{"http://www.foo.com/file&&name.tar.zst", "http_www_foo_com_file_name", ".tar.zst"},
		{"https://go.dev/dl/go1.22.3.linux-amd64.tar.gz", "https_go_dev_dl_go1_22_3_linux_amd64", ".tar.gz"},
	}
	for _, test := range tests {
		parts, err := SplitURL(test.input)
		require.NoError(t, err, test.input)
		assert.Equal(t, test.prefix, parts.Prefix, test.input)
		assert.Equal(t, test.suffix, parts.Suffix, test.input)
	}

	_, err := SplitURL("not a url\x7f://")
	assert.Error(t, err)
}
