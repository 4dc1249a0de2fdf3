package python

import (
	"strings"

	"github.com/flanksource/toolchains/pkg/archive"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
	"github.com/flanksource/toolchains/pkg/version"
)

// Family is the archive family prefix of python-build-standalone assets
const Family = "cpython"

// AssetMeta is the metadata parsed from a python-build-standalone archive
// file name: cpython-<version>[+group]-<token>-...-<token>.<suffix>
type AssetMeta struct {
	// Name is the full archive file name
	Name string
	// ArchiveType is detected from the file suffix
	ArchiveType archive.Type
	// Version carries the release group when the file name has one
	Version *version.PythonVersion
	// Tags are the remaining file-name tokens
	Tags platform.TagSet
}

// IsIndexAsset reports whether an asset name is a package archive rather
// than a checksum companion
func IsIndexAsset(name string) bool {
	return strings.HasPrefix(name, Family+"-") &&
		!strings.HasSuffix(name, ".sha256") &&
		name != "SHA256SUMS"
}

// ParseAssetName decomposes an archive file name into its version and tag
// set. The release group may appear suffixed to the version (+20240101) or as
// a free-standing token; a free-standing group when the version already has
// one is rejected.
func ParseAssetName(name string) (*AssetMeta, error) {
	archiveType, base, ok := archive.StripSuffix(name)
	if !ok {
		return nil, &archive.ErrUnsupportedFormat{Filename: name}
	}

	tokens := strings.Split(base, "-")
	if len(tokens) < 2 || tokens[0] != Family {
		return nil, &manager.ErrInvalidFilename{Filename: name}
	}

	v, err := version.ParsePython(tokens[1])
	if err != nil {
		return nil, &manager.ErrInvalidFilename{Filename: name, Token: tokens[1]}
	}

	tags := platform.NewTagSet()
	for _, token := range tokens[2:] {
		if version.IsReleaseGroup(token) {
			if v.Group != nil {
				return nil, &manager.ErrInvalidFilename{Filename: name, Token: token}
			}
			group, err := version.ParseReleaseGroup(token)
			if err != nil {
				return nil, &manager.ErrInvalidFilename{Filename: name, Token: token}
			}
			v = v.WithGroup(group)
			continue
		}
		tags.Add(token)
	}

	return &AssetMeta{
		Name:        name,
		ArchiveType: archiveType,
		Version:     v,
		Tags:        tags,
	}, nil
}

// variantRank orders the Windows build variants: shared is preferred over an
// unmarked build, which is preferred over static
func (m *AssetMeta) variantRank() int {
	switch {
	case m.Tags.Has("shared"):
		return 0
	case m.Tags.Has("static"):
		return 2
	default:
		return 1
	}
}
