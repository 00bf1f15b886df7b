// Package backup archives and restores the wolgate history database together
// with the configuration files that go with it.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver
)

// ErrUnsafePath is returned when an archive entry would escape the
// destination directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// Options selects what goes into a backup.
type Options struct {
	// DBPath is the SQLite history database. Required.
	DBPath string
	// Files are extra files (config, manifest) stored next to the database.
	// Missing files are skipped.
	Files []string
	// Output is the .tar.gz path to create.
	Output string
}

// Backup writes a tar.gz archive holding the database and opts.Files. The
// WAL is checkpointed first so the database file is self-contained.
func Backup(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.DBPath); err != nil {
		return fmt.Errorf("database file not found: %w", err)
	}
	if err := checkpointWAL(ctx, opts.DBPath); err != nil {
		return fmt.Errorf("WAL checkpoint failed: %w", err)
	}

	out, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := writeArchive(out, opts); err != nil {
		out.Close()
		os.Remove(opts.Output)
		return err
	}
	return out.Close()
}

func writeArchive(w io.Writer, opts Options) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err := addFile(tw, opts.DBPath); err != nil {
		return fmt.Errorf("adding database to archive: %w", err)
	}
	for _, path := range opts.Files {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := addFile(tw, path); err != nil {
			return fmt.Errorf("adding %s to archive: %w", filepath.Base(path), err)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

func checkpointWAL(ctx context.Context, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

// Restore extracts the regular files of archive into dir and returns their
// paths. Existing files are overwritten.
func Restore(ctx context.Context, archive, dir string) ([]string, error) {
	f, err := os.Open(archive)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}
	defer gr.Close()

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	var restored []string
	tr := tar.NewReader(gr)
	for {
		if err := ctx.Err(); err != nil {
			return restored, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return restored, nil
		}
		if err != nil {
			return restored, fmt.Errorf("reading archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		dest, err := safeJoin(dir, hdr.Name)
		if err != nil {
			return restored, err
		}
		if err := extract(tr, dest, hdr.FileInfo().Mode().Perm()); err != nil {
			return restored, fmt.Errorf("extracting %s: %w", hdr.Name, err)
		}
		restored = append(restored, dest)
	}
}

func safeJoin(dir, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return filepath.Join(dir, clean), nil
}

func extract(r io.Reader, dest string, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
