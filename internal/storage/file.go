package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileBackend keeps the snapshot in a single JSON file.
type FileBackend struct {
	path string
}

// NewFileBackend returns a backend for the snapshot at <dataDir>/rex.json,
// creating dataDir if needed.
func NewFileBackend(dataDir string) (*FileBackend, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &FileBackend{path: filepath.Join(dataDir, "rex.json")}, nil
}

// Path returns the snapshot file location.
func (b *FileBackend) Path() string {
	return b.path
}

// BackupPath returns where Backup writes: the snapshot path with a .bak suffix.
func (b *FileBackend) BackupPath() string {
	return strings.TrimSuffix(b.path, filepath.Ext(b.path)) + ".bak"
}

func (b *FileBackend) Read() ([]byte, bool, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot: %w", err)
	}
	return data, true, nil
}

func (b *FileBackend) Write(data []byte) error {
	return writeAtomic(b.path, data)
}

func (b *FileBackend) Backup(data []byte) (string, error) {
	p := b.BackupPath()
	if err := writeAtomic(p, data); err != nil {
		return "", fmt.Errorf("writing snapshot backup: %w", err)
	}
	return p, nil
}

// ListBackups reports the single backup file when it exists.
func (b *FileBackend) ListBackups() ([]BackupInfo, error) {
	fi, err := os.Stat(b.BackupPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	return []BackupInfo{{Name: fi.Name(), CreatedAt: fi.ModTime().UTC(), Size: int(fi.Size())}}, nil
}

// GetBackup reads the backup file. name may be its base name or full path.
func (b *FileBackend) GetBackup(name string) ([]byte, error) {
	p := b.BackupPath()
	if name != p && name != filepath.Base(p) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading backup: %w", err)
	}
	return data, nil
}

// writeAtomic writes data to a temp file next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	committed = true
	return nil
}
