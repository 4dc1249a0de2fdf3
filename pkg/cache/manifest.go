package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// ManifestFileName is the per-toolchain cache manifest file
const ManifestFileName = "downloads.yaml"

// File is one cached copy of a download
type File struct {
	FileName     string    `yaml:"file_name"`
	DownloadedAt time.Time `yaml:"downloaded_at"`
}

// Download records every cached copy of one URL. The freshest file is the
// current one.
type Download struct {
	URL   string `yaml:"url"`
	Files []File `yaml:"files"`
}

// Manifest maps URLs to their cached files
type Manifest struct {
	Downloads []Download `yaml:"downloads"`
}

// loadManifest reads the manifest from dir; a missing file yields an empty
// manifest
func loadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse cache manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// save persists the manifest atomically (write-new, rename)
func (m *Manifest) save(dir string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to serialize cache manifest: %w", err)
	}

	path := filepath.Join(dir, ManifestFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache manifest %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace cache manifest %s: %w", path, err)
	}
	return nil
}

// find returns the download entry for url, if any
func (m *Manifest) find(url string) *Download {
	for i := range m.Downloads {
		if m.Downloads[i].URL == url {
			return &m.Downloads[i]
		}
	}
	return nil
}

// append records a new cached file for url
func (m *Manifest) append(url, fileName string, downloadedAt time.Time) {
	file := File{FileName: fileName, DownloadedAt: downloadedAt}
	if d := m.find(url); d != nil {
		d.Files = append(d.Files, file)
		return
	}
	m.Downloads = append(m.Downloads, Download{URL: url, Files: []File{file}})
}

// newest returns the most recently downloaded file of a download entry
func (d *Download) newest() *File {
	if len(d.Files) == 0 {
		return nil
	}
	files := make([]File, len(d.Files))
	copy(files, d.Files)
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].DownloadedAt.After(files[j].DownloadedAt)
	})
	return &files[0]
}
