// Package toolchains manages isolated, per-project runtime toolchains
// (Python, Go, Java): it resolves distribution archives from the upstream
// indices, caches and verifies downloads, unpacks them into a shared data
// directory and projects a per-project environment over the result.
package toolchains

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/toolchains/pkg/config"
	"github.com/flanksource/toolchains/pkg/envs"
	"github.com/flanksource/toolchains/pkg/installer"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/repo"

	// Register built-in toolchains
	_ "github.com/flanksource/toolchains/pkg/manager/golang"
	_ "github.com/flanksource/toolchains/pkg/manager/java"
	_ "github.com/flanksource/toolchains/pkg/manager/python"
)

// Re-export commonly used types for the public API
type (
	ToolchainSpec = config.ToolchainSpec
	ProjectConfig = config.ProjectConfig
	EnvInfo       = envs.EnvInfo
	Options       = manager.Options
)

// CacheDirEnvName overrides the default cache/repository location
const CacheDirEnvName = "TOOLCHAINS_CACHE_DIR"

// DefaultCacheDir returns the shared cache and repository root, honoring
// TOOLCHAINS_CACHE_DIR
func DefaultCacheDir() (string, error) {
	if dir := os.Getenv(CacheDirEnvName); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return filepath.Join(home, ".toolchains"), nil
}

// App bundles an open repository with an installer over it
type App struct {
	Repo      *repo.Repo
	Installer *installer.Installer

	cacheRoot string
}

// CacheRoot returns the download cache root; each toolchain uses its own
// subdirectory
func (a *App) CacheRoot() string {
	return a.cacheRoot
}

// Open acquires the repository at cacheDir (DefaultCacheDir when empty) and
// returns the application handle. Callers must Close it.
func Open(cacheDir string) (*App, error) {
	if cacheDir == "" {
		var err error
		cacheDir, err = DefaultCacheDir()
		if err != nil {
			return nil, err
		}
	}

	r, err := repo.Open(cacheDir)
	if err != nil {
		return nil, err
	}

	cacheRoot := filepath.Join(cacheDir, "cache")
	return &App{
		Repo:      r,
		Installer: installer.New(r, cacheRoot),
		cacheRoot: cacheRoot,
	}, nil
}

// Close releases the repository lock
func (a *App) Close() error {
	return a.Repo.Close()
}

// InstallProject installs every toolchain declared in the project's
// toolchains.yaml
func (a *App) InstallProject(projectDir string, opts Options) error {
	return a.Installer.InstallProject(projectDir, opts)
}

// Env projects the environment for an initialized project
func (a *App) Env(projectDir string) (*EnvInfo, error) {
	return a.Installer.EnvInfo(projectDir)
}
