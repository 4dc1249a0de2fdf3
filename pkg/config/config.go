package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the per-project toolchain declaration
const ConfigFile = "toolchains.yaml"

// ToolchainSpec is one requested toolchain of a project
type ToolchainSpec struct {
	// Moniker selects the toolchain (python, go, java)
	Moniker string `yaml:"moniker"`
	// Version is the requested version in the toolchain's own grammar
	Version string `yaml:"version"`
	// Tags are extra required file-name tokens beyond the platform defaults
	Tags []string `yaml:"tags,omitempty"`
}

func (s ToolchainSpec) String() string {
	return s.Moniker + "@" + s.Version
}

// ProjectConfig is the declarative list of toolchains a project needs
type ProjectConfig struct {
	Toolchains []ToolchainSpec `yaml:"toolchains"`
}

// Load reads the project config from projectDir
func Load(projectDir string) (*ProjectConfig, error) {
	path := filepath.Join(projectDir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project config %s: %w", path, err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse project config %s: %w", path, err)
	}

	for i, spec := range cfg.Toolchains {
		if spec.Moniker == "" {
			return nil, fmt.Errorf("toolchain %d in %s has no moniker", i, path)
		}
		if spec.Version == "" {
			return nil, fmt.Errorf("toolchain %s in %s has no version", spec.Moniker, path)
		}
	}
	return &cfg, nil
}

// Save writes the project config to projectDir
func Save(projectDir string, cfg *ProjectConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize project config: %w", err)
	}
	path := filepath.Join(projectDir, ConfigFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write project config %s: %w", path, err)
	}
	return nil
}

// Exists reports whether projectDir has a toolchain declaration
func Exists(projectDir string) bool {
	_, err := os.Stat(filepath.Join(projectDir, ConfigFile))
	return err == nil
}
