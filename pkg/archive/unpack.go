package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/clicky/task"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// UnpackOptions configures Unpack
type UnpackOptions struct {
	// Strip removes this many leading path components from every entry.
	// Entries left with no components keep their base name.
	Strip int
}

// Unpack extracts an archive into dir, which must not exist yet. The first
// Strip path components are removed from every entry, parents are created on
// demand and POSIX mode bits are preserved.
func Unpack(archivePath, dir string, opts UnpackOptions, t *task.Task) error {
	if _, err := os.Stat(dir); err == nil {
		return &ErrOutputExists{Path: dir}
	}

	typ := Detect(archivePath)
	if typ == TypeUnknown {
		return &ErrUnsupportedFormat{Filename: archivePath}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch typ {
	case TypeZip:
		err = unpackZip(archivePath, dir, opts, t)
	default:
		err = unpackTar(archivePath, dir, typ, opts, t)
	}
	if err != nil {
		return err
	}

	if t != nil {
		t.Debugf("unpacked %s to %s", archivePath, dir)
	}
	return nil
}

// stripPath removes the first strip components of an entry path. ok is false
// when nothing remains (the stripped top-level directory itself).
func stripPath(name string, strip int, isDir bool) (string, bool) {
	name = strings.Trim(filepath.ToSlash(name), "/")
	if name == "" {
		return "", false
	}
	parts := strings.Split(name, "/")
	if len(parts) > strip {
		return filepath.Join(parts[strip:]...), true
	}
	if isDir {
		return "", false
	}
	// A bare top-level file keeps its name
	return parts[len(parts)-1], true
}

// securePath joins rel under dir, refusing traversal outside dir
func securePath(dir, rel string) (string, error) {
	dest := filepath.Join(dir, rel)
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry escapes output directory: %s", rel)
	}
	return dest, nil
}

func unpackTar(archivePath, dir string, typ Type, opts UnpackOptions, t *task.Task) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer f.Close()

	var reader io.Reader
	switch typ {
	case TypeTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", archivePath, err)
		}
		defer gz.Close()
		reader = gz
	case TypeTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", archivePath, err)
		}
		defer zr.Close()
		reader = zr
	case TypeTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("failed to decompress %s: %w", archivePath, err)
		}
		reader = xr
	default:
		return &ErrUnsupportedFormat{Filename: archivePath}
	}

	tr := tar.NewReader(reader)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", archivePath, err)
		}

		rel, ok := stripPath(header.Name, opts.Strip, header.Typeflag == tar.TypeDir)
		if !ok {
			continue
		}
		dest, err := securePath(dir, rel)
		if err != nil {
			return err
		}
		if t != nil {
			t.SetDescription("Unpacking " + rel)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dest, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
				return fmt.Errorf("failed to create parent of %s: %w", dest, err)
			}
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", dest, err)
			}
		case tar.TypeReg:
			if err := writeEntry(dest, tr, os.FileMode(header.Mode)&os.ModePerm); err != nil {
				return err
			}
		}
	}
}

func unpackZip(archivePath, dir string, opts UnpackOptions, t *task.Task) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		isDir := entry.FileInfo().IsDir()
		rel, ok := stripPath(entry.Name, opts.Strip, isDir)
		if !ok {
			continue
		}
		dest, err := securePath(dir, rel)
		if err != nil {
			return err
		}
		if t != nil {
			t.SetDescription("Unpacking " + rel)
		}

		if isDir {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dest, err)
			}
			continue
		}

		rc, err := entry.Open()
		if err != nil {
			return fmt.Errorf("failed to read entry %s: %w", entry.Name, err)
		}
		err = writeEntry(dest, rc, entry.Mode()&os.ModePerm)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dest string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", dest, err)
	}
	if mode == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", dest, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write file %s: %w", dest, err)
	}
	return out.Close()
}
