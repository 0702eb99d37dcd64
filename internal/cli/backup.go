package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/salthouse/workset/internal/retry"
	"github.com/salthouse/workset/internal/store"
)

var backupCmd = &cobra.Command{
	Use:   "backup [dest]",
	Short: "Write a consistent copy of the database",
	Long: "Backup copies the live database with VACUUM INTO. With no argument\n" +
		"a timestamped file is written next to the database.",
	Args: cobra.MaximumNArgs(1),
	RunE: runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var dest string
	err = retry.Do(cmd.Context(), retry.Config{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		RetryIf: func(err error) bool {
			return !errors.Is(err, store.ErrBackupExists)
		},
		OnRetry: func(attempt int, err error) {
			fmt.Fprintf(os.Stderr, "backup attempt %d failed: %v\n", attempt, err)
		},
	}, func() error {
		if len(args) > 0 {
			dest = args[0]
			return db.Backup(dest)
		}
		var err error
		dest, err = db.BackupTimestamped(filepath.Dir(db.Path))
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("backup written to %s\n", dest)
	return nil
}
