package installer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	log "github.com/sirupsen/logrus"

	"github.com/flanksource/toolchains/pkg/config"
	"github.com/flanksource/toolchains/pkg/envs"
	"github.com/flanksource/toolchains/pkg/manager"
	"github.com/flanksource/toolchains/pkg/repo"
)

// Installer drives the package managers and the repository to produce
// installed toolchains under a project's data directory
type Installer struct {
	registry  *manager.Registry
	repo      *repo.Repo
	cacheRoot string
}

// New creates an installer over an open repository. Each toolchain caches
// its downloads under its own subdirectory of cacheRoot.
func New(r *repo.Repo, cacheRoot string) *Installer {
	return &Installer{
		registry:  manager.GetGlobalRegistry(),
		repo:      r,
		cacheRoot: cacheRoot,
	}
}

// WithRegistry overrides the package manager registry
func (i *Installer) WithRegistry(registry *manager.Registry) *Installer {
	i.registry = registry
	return i
}

// EnsureProject returns the project's data directory, initializing a fresh
// manifest and link on first use
func (i *Installer) EnsureProject(projectDir string) (*repo.DirInfo, error) {
	info, err := i.repo.Get(projectDir)
	if err != nil {
		return nil, err
	}
	if info != nil {
		return info, nil
	}
	return i.repo.InitProject(projectDir)
}

// InstallProject reads the project's toolchain declaration and installs
// every entry into its data directory
func (i *Installer) InstallProject(projectDir string, opts manager.Options) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}

	info, err := i.EnsureProject(projectDir)
	if err != nil {
		return err
	}

	for _, spec := range cfg.Toolchains {
		if err := i.InstallToolchain(info, spec, opts); err != nil {
			return fmt.Errorf("failed to install %s: %w", spec, err)
		}
	}
	return nil
}

// InstallToolchain installs one toolchain into the data directory and
// records it in the env record. A failed install leaves the partial
// directory in place for inspection; cleanup is explicit.
func (i *Installer) InstallToolchain(info *repo.DirInfo, spec config.ToolchainSpec, opts manager.Options) error {
	mgr, err := i.registry.NewPackageManager(spec.Moniker, filepath.Join(i.cacheRoot, spec.Moniker))
	if err != nil {
		return err
	}

	dir := filepath.Join(info.DataDir, spec.Moniker)
	if err := checkInstallDir(dir); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"moniker": spec.Moniker,
		"version": spec.Version,
		"dir":     dir,
	}).Info("installing toolchain")

	pkg, err := mgr.InstallPackage(spec.Version, manager.TagFilter(spec.Tags), dir, opts)
	if err != nil {
		return err
	}

	rec, err := envs.Read(info.DataDir)
	if err != nil {
		return err
	}
	rec.Upsert(envs.EnvEntry{
		Moniker:    spec.Moniker,
		Properties: pkg.Properties,
	})
	if err := envs.Write(info.DataDir, rec); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"moniker": spec.Moniker,
		"version": pkg.Version.String(),
	}).Info("installed toolchain")
	return nil
}

// DownloadProject caches every declared toolchain archive without unpacking
func (i *Installer) DownloadProject(projectDir string, opts manager.Options) error {
	cfg, err := config.Load(projectDir)
	if err != nil {
		return err
	}
	for _, spec := range cfg.Toolchains {
		mgr, err := i.registry.NewPackageManager(spec.Moniker, filepath.Join(i.cacheRoot, spec.Moniker))
		if err != nil {
			return err
		}
		if err := mgr.DownloadPackage(spec.Version, manager.TagFilter(spec.Tags), opts); err != nil {
			return fmt.Errorf("failed to download %s: %w", spec, err)
		}
	}
	return nil
}

// EnvInfo projects the environment of a project's data directory
func (i *Installer) EnvInfo(projectDir string) (*envs.EnvInfo, error) {
	info, err := i.repo.Get(projectDir)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("project directory %s is not initialized", projectDir)
	}
	rec, err := envs.Read(info.DataDir)
	if err != nil {
		return nil, err
	}
	return envs.MakeEnvInfo(info.DataDir, rec), nil
}

// checkInstallDir verifies the install target does not exist or is an empty
// directory left by a fresh manifest
func checkInstallDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect install directory %s: %w", dir, err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("install directory %s is not empty", dir)
	}
	// The archive handler refuses existing directories; an empty one from a
	// fresh manifest is removed so unpack can recreate it
	return os.Remove(dir)
}

// StartInstallTask runs an install under a named clicky task for progress
// reporting
func StartInstallTask(name string, fn func(t *task.Task) error) {
	task.StartTask(name, func(ctx flanksourceContext.Context, t *task.Task) (any, error) {
		return nil, fn(t)
	})
}
