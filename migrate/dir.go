package migrate

import (
	"context"
	"fmt"

	atlas "ariga.io/atlas/sql/migrate"
)

// Store persists generated migrations and lists them back.
type Store interface {
	// Write persists m. Writing a migration whose files exist overwrites them.
	Write(ctx context.Context, m *Migration) error
	// Migrations returns the stored migrations in ascending version order.
	Migrations(ctx context.Context) ([]*Migration, error)
}

// ErrChecksumMismatch is returned when a migration directory was changed
// outside of the tool.
var ErrChecksumMismatch = atlas.ErrChecksumMismatch

// LocalDir stores migrations as SQL files in a local directory. The
// directory carries an atlas.sum integrity file that is checked before
// every read and write.
type LocalDir struct {
	dir *atlas.LocalDir
}

// NewLocalDir returns a store for the directory at path, which must exist.
func NewLocalDir(path string) (*LocalDir, error) {
	d, err := atlas.NewLocalDir(path)
	if err != nil {
		return nil, fmt.Errorf("migrate: open directory: %w", err)
	}
	return &LocalDir{dir: d}, nil
}

// Path returns the directory path.
func (d *LocalDir) Path() string { return d.dir.Path() }

// Write implements the Store interface.
func (d *LocalDir) Write(_ context.Context, m *Migration) error {
	if err := atlas.Validate(d.dir); err != nil {
		return fmt.Errorf("migrate: validate directory: %w", err)
	}
	up, down := FileNames(m)
	if err := d.dir.WriteFile(up, Encode(m, "up", m.Up)); err != nil {
		return fmt.Errorf("migrate: write %s: %w", up, err)
	}
	if err := d.dir.WriteFile(down, Encode(m, "down", m.Down)); err != nil {
		return fmt.Errorf("migrate: write %s: %w", down, err)
	}
	sum, err := d.dir.Checksum()
	if err != nil {
		return fmt.Errorf("migrate: checksum: %w", err)
	}
	if err := atlas.WriteSumFile(d.dir, sum); err != nil {
		return fmt.Errorf("migrate: write %s: %w", atlas.HashFileName, err)
	}
	return nil
}

// Migrations implements the Store interface.
func (d *LocalDir) Migrations(context.Context) ([]*Migration, error) {
	if err := atlas.Validate(d.dir); err != nil {
		return nil, fmt.Errorf("migrate: validate directory %s: %w", d.dir.Path(), err)
	}
	files, err := d.dir.Files()
	if err != nil {
		return nil, fmt.Errorf("migrate: read directory: %w", err)
	}
	fs := make([]file, len(files))
	for i, f := range files {
		fs[i] = file{name: f.Name(), data: f.Bytes()}
	}
	return assemble(fs)
}
