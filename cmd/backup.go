package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
)

const backupTimeFormat = "2006-01-02T15-04-05Z"

// defaultBackupPath names a timestamped backup inside the configured backup directory
func defaultBackupPath(prefix string, now time.Time) string {
	return filepath.Join(cfg.BackupDir, fmt.Sprintf("%s-%s.cvlt", prefix, now.UTC().Format(backupTimeFormat)))
}

var backupCmd = &cobra.Command{
	Use:   "backup [output_path]",
	Short: "Create a backup of the vault",
	Long: `Copy the encrypted vault file to output_path, or to a timestamped file in
backup_dir. The backup stays encrypted under the current master password.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// parse before copying so a damaged vault is not backed up silently
		ev, err := localStore.Load()
		if err != nil {
			return fmt.Errorf("failed to load vault: %w", err)
		}

		outputPath := defaultBackupPath("vault", time.Now())
		if len(args) > 0 {
			outputPath = args[0]
		}

		if err := localStore.Backup(outputPath); err != nil {
			return fmt.Errorf("failed to write backup: %w", err)
		}

		fmt.Printf("Backup of revision %d created at: %s\n", ev.Revision, outputPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
}
