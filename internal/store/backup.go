package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrBackupExists reports a backup destination that is already occupied.
// Callers wrapping Backup in a retry loop should treat it as permanent.
var ErrBackupExists = errors.New("backup target already exists")

// Backup writes a consistent copy of the database to destPath using
// VACUUM INTO, creating parent directories as needed. SQLite refuses to
// overwrite, so destPath must not exist yet.
func (db *DB) Backup(destPath string) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("%w: %s", ErrBackupExists, destPath)
	}

	if _, err := db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("vacuum into %s: %w", destPath, err)
	}
	return nil
}

// BackupTimestamped writes a backup named workset-YYYYMMDD-HHMMSS.db into
// dir and returns the full path.
func (db *DB) BackupTimestamped(dir string) (string, error) {
	name := fmt.Sprintf("workset-%s.db", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, name)
	if err := db.Backup(path); err != nil {
		return "", err
	}
	return path, nil
}
