package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBackup(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "live.db")

	db, err := Open(src)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if err := db.SaveEntity(sampleEntity("backup-1")); err != nil {
		t.Fatalf("SaveEntity: %v", err)
	}

	dest := filepath.Join(dir, "backups", "copy.db")
	if err := db.Backup(dest); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	restored, err := Open(dest)
	if err != nil {
		t.Fatalf("Open backup: %v", err)
	}
	defer restored.Close()

	ent, err := restored.GetEntity("backup-1")
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if ent == nil {
		t.Fatal("entity missing from backup")
	}

	version, err := restored.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 4 {
		t.Errorf("schema version = %d, want 4", version)
	}
}

func TestBackupRefusesExisting(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	dest := filepath.Join(dir, "copy.db")
	if err := os.WriteFile(dest, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	err = db.Backup(dest)
	if err == nil {
		t.Fatal("expected error for existing destination")
	}
	if !errors.Is(err, ErrBackupExists) {
		t.Errorf("error = %v, want ErrBackupExists", err)
	}
}

func TestBackupTimestamped(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(filepath.Join(dir, "live.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	path, err := db.BackupTimestamped(filepath.Join(dir, "backups"))
	if err != nil {
		t.Fatalf("BackupTimestamped: %v", err)
	}
	name := filepath.Base(path)
	if !strings.HasPrefix(name, "workset-") || !strings.HasSuffix(name, ".db") {
		t.Errorf("unexpected backup name %q", name)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}
