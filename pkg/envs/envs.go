package envs

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// EnvRecFileName is the env record stored in each data directory
const EnvRecFileName = "env.yaml"

// EnvEntry records one installed toolchain and its projection inputs
type EnvEntry struct {
	Moniker    string         `yaml:"moniker"`
	Properties map[string]any `yaml:"properties"`
}

// EnvRec is the ordered list of toolchains installed in a data directory
type EnvRec struct {
	Envs []EnvEntry `yaml:"envs"`
}

// Find returns the entry for a moniker, if present
func (r *EnvRec) Find(moniker string) *EnvEntry {
	for i := range r.Envs {
		if r.Envs[i].Moniker == moniker {
			return &r.Envs[i]
		}
	}
	return nil
}

// Upsert replaces the entry for the moniker or appends a new one
func (r *EnvRec) Upsert(entry EnvEntry) {
	if existing := r.Find(entry.Moniker); existing != nil {
		*existing = entry
		return
	}
	r.Envs = append(r.Envs, entry)
}

// Read loads the env record of a data directory; a missing file yields an
// empty record
func Read(dataDir string) (*EnvRec, error) {
	path := filepath.Join(dataDir, EnvRecFileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &EnvRec{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env record %s: %w", path, err)
	}
	var rec EnvRec
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse env record %s: %w", path, err)
	}
	return &rec, nil
}

// Write persists the env record of a data directory
func Write(dataDir string, rec *EnvRec) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to serialize env record: %w", err)
	}
	path := filepath.Join(dataDir, EnvRecFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write env record %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace env record %s: %w", path, err)
	}
	return nil
}

// EnvInfo is the environment projected for a data directory: directories to
// prepend to PATH and variables to set
type EnvInfo struct {
	PathDirs []string
	Vars     map[string]string
}

// propertyDir returns the entry's relative install dir, defaulting to the
// moniker
func propertyDir(entry EnvEntry) string {
	if dir, ok := entry.Properties["dir"].(string); ok && dir != "" {
		return dir
	}
	return entry.Moniker
}

// MakeEnvInfo projects the env record of a data directory into PATH prefixes
// and variable bindings
func MakeEnvInfo(dataDir string, rec *EnvRec) *EnvInfo {
	info := &EnvInfo{Vars: make(map[string]string)}
	for _, entry := range rec.Envs {
		root := filepath.Join(dataDir, propertyDir(entry))
		switch entry.Moniker {
		case "python":
			if runtime.GOOS == "windows" {
				info.PathDirs = append(info.PathDirs, root, filepath.Join(root, "Scripts"))
			} else {
				info.PathDirs = append(info.PathDirs, filepath.Join(root, "bin"))
			}
		case "go":
			info.PathDirs = append(info.PathDirs, filepath.Join(root, "bin"))
			info.Vars["GOROOT"] = root
		case "java":
			info.PathDirs = append(info.PathDirs, filepath.Join(root, "bin"))
			info.Vars["JAVA_HOME"] = root
		default:
			info.PathDirs = append(info.PathDirs, filepath.Join(root, "bin"))
		}
	}
	return info
}

// ListExecutables globs the projected PATH directories for the commands an
// environment provides
func ListExecutables(dataDir string, rec *EnvRec) ([]string, error) {
	info := MakeEnvInfo(dataDir, rec)
	var executables []string
	for _, dir := range info.PathDirs {
		matches, err := doublestar.FilepathGlob(filepath.Join(dir, "*"))
		if err != nil {
			return nil, fmt.Errorf("failed to glob %s: %w", dir, err)
		}
		for _, match := range matches {
			stat, err := os.Stat(match)
			if err != nil || stat.IsDir() {
				continue
			}
			if runtime.GOOS == "windows" || stat.Mode()&0111 != 0 {
				executables = append(executables, match)
			}
		}
	}
	return executables, nil
}
