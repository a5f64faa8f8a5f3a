package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var restoreYes bool

var restoreCmd = &cobra.Command{
	Use:   "restore [backup_path]",
	Short: "Restore vault from a backup",
	Long: `Replace the vault with an encrypted backup file.
If no backup path is provided, lists the backups in backup_dir for selection.
The backup is checked to be a readable vault before anything is replaced.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var backupPath string
		if len(args) > 0 {
			backupPath = args[0]
		} else {
			selected, err := selectBackup(cfg.BackupDir)
			if err != nil {
				return err
			}
			backupPath = selected
		}

		backupData, err := os.ReadFile(backupPath)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("backup file not found: %s", backupPath)
			}
			return fmt.Errorf("failed to read backup file: %w", err)
		}

		if localStore.Exists() && !restoreYes {
			if !confirm(fmt.Sprintf("Replace the vault at %s?", cfg.VaultPath)) {
				fmt.Println("Aborted")
				return nil
			}
			if confirm("Create a backup of the current vault first?") {
				currentBackupPath := defaultBackupPath("vault-before-restore", time.Now())
				if err := localStore.Backup(currentBackupPath); err != nil {
					return fmt.Errorf("failed to back up current vault: %w", err)
				}
				fmt.Printf("Current vault backed up to: %s\n", currentBackupPath)
			}
		}

		if err := localStore.Restore(backupData); err != nil {
			return fmt.Errorf("failed to restore vault: %w", err)
		}

		fmt.Printf("Vault restored successfully from: %s\n", filepath.Base(backupPath))
		fmt.Println("It opens with the master password that was current when the backup was taken")
		return nil
	},
}

// BackupInfo holds information about a backup file
type BackupInfo struct {
	Path      string
	CreatedAt time.Time
	Size      int64
}

// selectBackup lists the backups in dir and asks which one to use
func selectBackup(dir string) (string, error) {
	backups, err := findBackups(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no backup directory found at %s. Create a backup first with 'credvault backup'", dir)
		}
		return "", fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("no backup files found in %s", dir)
	}

	fmt.Println("Available backups:")
	fmt.Println()
	for i, backup := range backups {
		fmt.Printf("  %d. %s\n", i+1, filepath.Base(backup.Path))
		fmt.Printf("     Created: %s\n", backup.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("     Size: %s\n", formatFileSize(backup.Size))
		fmt.Println()
	}

	input, err := readLine("Select backup to restore (enter number): ")
	if err != nil {
		return "", err
	}
	selection, err := parseSelection(input, len(backups))
	if err != nil {
		return "", err
	}
	return backups[selection].Path, nil
}

// parseSelection converts a 1-based menu choice into an index below n
func parseSelection(input string, n int) (int, error) {
	input = strings.TrimSpace(input)
	selection, err := strconv.Atoi(input)
	if err != nil || selection < 1 || selection > n {
		return 0, fmt.Errorf("invalid selection: %s", input)
	}
	return selection - 1, nil
}

// findBackups finds all backup files in the backup directory, newest first
func findBackups(backupDir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		return nil, err
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".cvlt") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:      filepath.Join(backupDir, name),
			CreatedAt: info.ModTime(),
			Size:      info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	return backups, nil
}

// formatFileSize formats file size in human-readable format
func formatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "Replace the current vault without asking")
}
