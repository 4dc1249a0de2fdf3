package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/flanksource/commons/logger"
)

const (
	// LockFileName is the advisory repository lock
	LockFileName = "repo.lock"

	manifestsDirName = "manifests"
	linksDirName     = "links"
	dataDirName      = "data"
)

// ErrLockBusy is returned when another process holds the repository lock
type ErrLockBusy struct {
	Path string
}

func (e *ErrLockBusy) Error() string {
	return "repository lock is held by another process: " + e.Path
}

// DirInfo is a project's resolved data directory
type DirInfo struct {
	MetaID     string
	LinkID     string
	ProjectDir string
	DataDir    string
}

// Repo is a process-exclusive store of manifests and project links. It holds
// an advisory file lock for its whole lifetime; a second process fails fast.
type Repo struct {
	dir  string
	lock *flock.Flock
}

// Open opens or creates the repository at dir and acquires its lock.
// Returns ErrLockBusy when another process holds it.
func Open(dir string) (*Repo, error) {
	for _, sub := range []string{manifestsDirName, linksDirName, dataDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
	}

	lockPath := filepath.Join(dir, LockFileName)
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire repository lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, &ErrLockBusy{Path: lockPath}
	}

	return &Repo{dir: dir, lock: lock}, nil
}

// Close releases the repository lock
func (r *Repo) Close() error {
	return r.lock.Unlock()
}

// Dir returns the repository root
func (r *Repo) Dir() string {
	return r.dir
}

// checkLock verifies the lock is still held; every read re-verifies this
func (r *Repo) checkLock() error {
	if !r.lock.Locked() {
		return &ErrLockBusy{Path: r.lock.Path()}
	}
	return nil
}

// ListManifests returns every manifest, ordered by meta-ID
func (r *Repo) ListManifests() ([]Manifest, error) {
	if err := r.checkLock(); err != nil {
		return nil, err
	}

	dir := filepath.Join(r.dir, manifestsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list manifests: %w", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		manifest, err := readRecord[Manifest](filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, *manifest)
	}
	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].MetaID < manifests[j].MetaID
	})
	return manifests, nil
}

// ListLinks returns every link, ordered by link-ID
func (r *Repo) ListLinks() ([]Link, error) {
	if err := r.checkLock(); err != nil {
		return nil, err
	}

	dir := filepath.Join(r.dir, linksDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	var links []Link
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		link, err := readRecord[Link](filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	sort.Slice(links, func(i, j int) bool {
		return links[i].LinkID < links[j].LinkID
	})
	return links, nil
}

// Get returns the data directory linked to projectDir, if any. A project
// directory claimed by more than one link is invalid and reported as an
// error.
func (r *Repo) Get(projectDir string) (*DirInfo, error) {
	links, err := r.ListLinks()
	if err != nil {
		return nil, err
	}

	var found *Link
	for i := range links {
		if links[i].ProjectDir != projectDir {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("project directory %s has more than one link", projectDir)
		}
		found = &links[i]
	}
	if found == nil {
		return nil, nil
	}

	manifest, err := r.findManifest(found.MetaID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, fmt.Errorf("link %s references missing manifest %s", found.LinkID, found.MetaID)
	}

	return &DirInfo{
		MetaID:     manifest.MetaID,
		LinkID:     found.LinkID,
		ProjectDir: projectDir,
		DataDir:    manifest.DataDir,
	}, nil
}

// InitProject creates a fresh manifest and data directory for projectDir and
// links them; fails when the project is already linked
func (r *Repo) InitProject(projectDir string) (*DirInfo, error) {
	existing, err := r.Get(projectDir)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("project directory %s is already linked to %s", projectDir, existing.DataDir)
	}

	metaID := uuid.NewString()
	dataDir := filepath.Join(r.dir, dataDirName, metaID)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %w", dataDir, err)
	}

	manifest := Manifest{
		MetaID:             metaID,
		DataDir:            dataDir,
		OriginalProjectDir: projectDir,
		CreatedAt:          time.Now(),
	}
	if err := writeRecord(r.manifestPath(metaID), manifest); err != nil {
		return nil, err
	}

	linkID, err := r.writeLink(projectDir, metaID)
	if err != nil {
		return nil, err
	}

	logger.V(1).Infof("initialized project %s with data directory %s", projectDir, dataDir)

	return &DirInfo{
		MetaID:     metaID,
		LinkID:     linkID,
		ProjectDir: projectDir,
		DataDir:    dataDir,
	}, nil
}

// Link binds projectDir to an existing manifest's data directory
func (r *Repo) Link(projectDir, metaID string) (*DirInfo, error) {
	existing, err := r.Get(projectDir)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("project directory %s is already linked to %s", projectDir, existing.DataDir)
	}

	manifest, err := r.findManifest(metaID)
	if err != nil {
		return nil, err
	}
	if manifest == nil {
		return nil, fmt.Errorf("no manifest with meta-ID %s", metaID)
	}

	linkID, err := r.writeLink(projectDir, metaID)
	if err != nil {
		return nil, err
	}

	return &DirInfo{
		MetaID:     metaID,
		LinkID:     linkID,
		ProjectDir: projectDir,
		DataDir:    manifest.DataDir,
	}, nil
}

// Unlink removes the link for projectDir, leaving the manifest and its data
// directory in place
func (r *Repo) Unlink(projectDir string) error {
	info, err := r.Get(projectDir)
	if err != nil {
		return err
	}
	if info == nil {
		return fmt.Errorf("project directory %s is not linked", projectDir)
	}
	return os.Remove(r.linkPath(info.LinkID))
}

func (r *Repo) writeLink(projectDir, metaID string) (string, error) {
	linkID := uuid.NewString()
	link := Link{
		LinkID:     linkID,
		ProjectDir: projectDir,
		MetaID:     metaID,
		CreatedAt:  time.Now(),
	}
	if err := writeRecord(r.linkPath(linkID), link); err != nil {
		return "", err
	}
	return linkID, nil
}

func (r *Repo) findManifest(metaID string) (*Manifest, error) {
	path := r.manifestPath(metaID)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return readRecord[Manifest](path)
}

func (r *Repo) manifestPath(metaID string) string {
	return filepath.Join(r.dir, manifestsDirName, metaID+".yaml")
}

func (r *Repo) linkPath(linkID string) string {
	return filepath.Join(r.dir, linksDirName, linkID+".yaml")
}
