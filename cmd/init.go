package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/crypto"
	"github.com/credvault/credvault/internal/session"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vault",
	Long:  `Initialize a new, empty encrypted vault protected by a master password.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localStore.Exists() {
			return fmt.Errorf("vault already exists at %s", cfg.VaultPath)
		}

		password, err := readNewPassword("Enter master password: ", "Confirm master password: ")
		if err != nil {
			return err
		}
		defer crypto.Zeroize(password)

		s, err := session.Create(localStore, password, cfg.SessionOptions())
		if err != nil {
			return fmt.Errorf("failed to create vault: %w", err)
		}
		vaultID := s.VaultID()
		s.Close()

		fmt.Printf("Vault %s initialized at %s\n", vaultID, cfg.VaultPath)

		if _, err := os.Stat(cfg.ConfigPath); os.IsNotExist(err) {
			if err := cfg.SaveConfig(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save config: %v\n", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
