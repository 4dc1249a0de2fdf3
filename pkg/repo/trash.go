package repo

import (
	"fmt"
	"os"

	"github.com/flanksource/commons/logger"
)

// Trash is the set of repository entries that have lost integrity and may be
// reclaimed
type Trash struct {
	// InvalidLinks reference a missing manifest, a vanished project
	// directory, or share a project directory with another link
	InvalidLinks []Link
	// UnreferencedManifests have no link pointing at them
	UnreferencedManifests []Manifest
}

// IsEmpty reports whether there is nothing to reclaim
func (t *Trash) IsEmpty() bool {
	return len(t.InvalidLinks) == 0 && len(t.UnreferencedManifests) == 0
}

// ComputeTrash scans links and manifests and classifies the invalid ones.
// Nothing is deleted.
func (r *Repo) ComputeTrash() (*Trash, error) {
	manifests, err := r.ListManifests()
	if err != nil {
		return nil, err
	}
	links, err := r.ListLinks()
	if err != nil {
		return nil, err
	}

	byMetaID := make(map[string]Manifest, len(manifests))
	for _, manifest := range manifests {
		byMetaID[manifest.MetaID] = manifest
	}

	projectDirCount := make(map[string]int, len(links))
	for _, link := range links {
		projectDirCount[link.ProjectDir]++
	}

	trash := &Trash{}
	referenced := make(map[string]bool)
	for _, link := range links {
		invalid := false
		if _, ok := byMetaID[link.MetaID]; !ok {
			invalid = true
		}
		if _, err := os.Stat(link.ProjectDir); err != nil {
			invalid = true
		}
		if projectDirCount[link.ProjectDir] > 1 {
			invalid = true
		}
		if invalid {
			trash.InvalidLinks = append(trash.InvalidLinks, link)
			continue
		}
		referenced[link.MetaID] = true
	}

	for _, manifest := range manifests {
		if !referenced[manifest.MetaID] {
			trash.UnreferencedManifests = append(trash.UnreferencedManifests, manifest)
		}
	}

	return trash, nil
}

// EmptyTrash deletes the invalid links and unreferenced manifests found by
// ComputeTrash, along with the manifests' data directories
func (r *Repo) EmptyTrash() (*Trash, error) {
	trash, err := r.ComputeTrash()
	if err != nil {
		return nil, err
	}

	for _, link := range trash.InvalidLinks {
		logger.V(1).Infof("removing invalid link %s (project %s)", link.LinkID, link.ProjectDir)
		if err := os.Remove(r.linkPath(link.LinkID)); err != nil {
			return nil, fmt.Errorf("failed to remove link %s: %w", link.LinkID, err)
		}
	}

	for _, manifest := range trash.UnreferencedManifests {
		logger.V(1).Infof("removing unreferenced manifest %s (data %s)", manifest.MetaID, manifest.DataDir)
		if err := os.RemoveAll(manifest.DataDir); err != nil {
			return nil, fmt.Errorf("failed to remove data directory %s: %w", manifest.DataDir, err)
		}
		if err := os.Remove(r.manifestPath(manifest.MetaID)); err != nil {
			return nil, fmt.Errorf("failed to remove manifest %s: %w", manifest.MetaID, err)
		}
	}

	return trash, nil
}
