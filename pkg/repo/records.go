package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest records one data directory and the project it was created for
type Manifest struct {
	MetaID             string    `yaml:"meta_id"`
	DataDir            string    `yaml:"data_dir"`
	OriginalProjectDir string    `yaml:"original_project_dir"`
	CreatedAt          time.Time `yaml:"created_at"`
}

// Link binds a project directory to a manifest's data directory
type Link struct {
	LinkID     string    `yaml:"link_id"`
	ProjectDir string    `yaml:"project_dir"`
	MetaID     string    `yaml:"meta_id"`
	CreatedAt  time.Time `yaml:"created_at"`
}

func readRecord[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var record T
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &record, nil
}

func writeRecord(path string, record any) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
