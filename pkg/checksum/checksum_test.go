package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	digest := sha256.Sum256([]byte("hello"))
	hexDigest := hex.EncodeToString(digest[:])

	c, err := Parse(hexDigest)
	require.NoError(t, err)
	assert.Equal(t, hexDigest, c.String())

	_, err = Parse("not-hex")
	assert.Error(t, err)

	// Valid hex but wrong length
	_, err = Parse("abcdef")
	assert.Error(t, err)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	digest := sha256.Sum256([]byte("hello"))
	c, err := Parse(hex.EncodeToString(digest[:]))
	require.NoError(t, err)

	ok, err := c.ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, ok)

	other := sha256.Sum256([]byte("other"))
	c2, err := Parse(hex.EncodeToString(other[:]))
	require.NoError(t, err)
	ok, err = c2.ValidateFile(path)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ValidateFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseSums(t *testing.T) {
	a := sha256.Sum256([]byte("a"))
	b := sha256.Sum256([]byte("b"))
	content := hex.EncodeToString(a[:]) + "  cpython-3.10.9-x86_64-unknown-linux-gnu-install_only.tar.gz\n" +
		hex.EncodeToString(b[:]) + "  cpython-3.11.1-aarch64-apple-darwin-install_only.tar.gz\n" +
		"\n"

	sums, err := ParseSums(strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 2, sums.Len())

	c, ok := sums.Lookup("cpython-3.10.9-x86_64-unknown-linux-gnu-install_only.tar.gz")
	require.True(t, ok)
	assert.Equal(t, hex.EncodeToString(a[:]), c.String())

	_, ok = sums.Lookup("missing.tar.gz")
	assert.False(t, ok)
}

func TestParseSumsMalformed(t *testing.T) {
	_, err := ParseSums(strings.NewReader("justonefield\n"))
	assert.Error(t, err)
}
