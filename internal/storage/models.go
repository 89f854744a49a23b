package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Backend is the durable home of the item snapshot. Implementations read and
// write the whole document at once.
type Backend interface {
	// Read returns the current snapshot. found is false when none exists yet.
	Read() (data []byte, found bool, err error)

	// Write replaces the snapshot. Readers never observe a partial write.
	Write(data []byte) error

	// Backup preserves data outside the working snapshot and returns where it went.
	Backup(data []byte) (location string, err error)
}

// BackupInfo describes one preserved copy of a corrupt snapshot.
type BackupInfo struct {
	Name      string
	CreatedAt time.Time
	Size      int
}

// BackupReader is implemented by backends whose backups can be listed and
// read back.
type BackupReader interface {
	// ListBackups returns the backups, newest first.
	ListBackups() ([]BackupInfo, error)

	// GetBackup returns a backup's bytes, or ErrNotFound.
	GetBackup(name string) ([]byte, error)
}

// IngestRun is one recorded bulk-ingestion run.
type IngestRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Files      string // JSON array stored as text
	Options    string // JSON object stored as text
	Added      int
	Total      int
}
