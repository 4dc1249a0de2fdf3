package java

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flanksource/commons/logger"
	"github.com/flanksource/toolchains/pkg/cache"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/platform"
	"github.com/flanksource/toolchains/pkg/version"
)

const (
	// IndexFileName is the consolidated on-disk index
	IndexFileName = "index.yaml"

	// indexMaxAge is how long the on-disk index stays fresh before the next
	// read triggers a refresh
	indexMaxAge = 12 * time.Hour
)

// IndexVersion is one installable JDK build in the consolidated index
type IndexVersion struct {
	OpenJDKVersion string `yaml:"openjdk_version"`
	FileName       string `yaml:"file_name"`
	URL            string `yaml:"url"`
	Size           int64  `yaml:"size"`
	Checksum       string `yaml:"checksum"`
}

// Index is the consolidated Adoptium listing persisted between runs
type Index struct {
	LastUpdatedAt time.Time      `yaml:"last_updated_at"`
	Versions      []IndexVersion `yaml:"versions"`
}

// adoptiumRelease mirrors the fields of the Adoptium assets response the
// index needs
type adoptiumRelease struct {
	Binaries []struct {
		Package *struct {
			Name     string `json:"name"`
			Link     string `json:"link"`
			Size     int64  `json:"size"`
			Checksum string `json:"checksum"`
		} `json:"package"`
	} `json:"binaries"`
	VersionData struct {
		OpenJDKVersion string `json:"openjdk_version"`
	} `json:"version_data"`
}

// readIndex returns the on-disk index, refreshing it when missing, stale or
// forced
func (m *Manager) readIndex(opts manager.Options) (*Index, error) {
	indexPath := filepath.Join(m.ctx.Dir(), IndexFileName)

	if !opts.Update {
		index, err := loadIndex(indexPath)
		if err != nil {
			return nil, err
		}
		if index != nil && time.Since(index.LastUpdatedAt) < indexMaxAge {
			return index, nil
		}
		if index != nil {
			logger.V(2).Infof("adoptium index is older than %s, refreshing", indexMaxAge)
		}
	}

	return m.refreshIndex(indexPath, opts)
}

func loadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read adoptium index %s: %w", path, err)
	}
	var index Index
	if err := yaml.Unmarshal(data, &index); err != nil {
		return nil, &manager.ErrParse{Path: path, Cause: err}
	}
	return &index, nil
}

// refreshIndex walks the paginated listing and persists the consolidated
// result
func (m *Manager) refreshIndex(indexPath string, opts manager.Options) (*Index, error) {
	listURL := fmt.Sprintf("%s/v3/assets/version/%s", m.ServerURL, version.MavenAllVersions().ToPathSegment())
	query := DefaultQuery(platform.Current())

	result, err := m.ctx.DownloadPaginated(listURL, cache.DownloadOptions{
		Accept: "application/json",
		Query:  query.Values(),
		Task:   opts.Task,
	})
	if err != nil {
		return nil, err
	}

	index := &Index{LastUpdatedAt: time.Now()}
	for _, part := range result.Parts {
		data, err := os.ReadFile(part)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %s: %w", part, err)
		}
		var releases []adoptiumRelease
		if err := json.Unmarshal(data, &releases); err != nil {
			return nil, &manager.ErrParse{Path: part, Cause: err}
		}
		for _, release := range releases {
			// Exactly one binary survives the platform query; releases
			// with none or several are not installable
			if len(release.Binaries) != 1 {
				continue
			}
			pkg := release.Binaries[0].Package
			if pkg == nil || pkg.Link == "" || pkg.Checksum == "" {
				continue
			}
			index.Versions = append(index.Versions, IndexVersion{
				OpenJDKVersion: release.VersionData.OpenJDKVersion,
				FileName:       pkg.Name,
				URL:            pkg.Link,
				Size:           pkg.Size,
				Checksum:       pkg.Checksum,
			})
		}
	}

	data, err := yaml.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize adoptium index: %w", err)
	}
	tmp := indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write adoptium index %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, indexPath); err != nil {
		return nil, fmt.Errorf("failed to replace adoptium index %s: %w", indexPath, err)
	}
	return index, nil
}
