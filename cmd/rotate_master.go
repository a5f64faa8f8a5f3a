package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/credvault/credvault/internal/crypto"
)

var rotateMasterCmd = &cobra.Command{
	Use:     "rotate-master",
	Aliases: []string{"change-password"},
	Short:   "Change the master password",
	Long: `Change the master password. The vault is re-encrypted under a key derived
from the new password with a fresh salt, using the KDF and cipher from the
config file. The old file is replaced only once the new one is on disk.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.Close()

		newPassword, err := readNewPassword("Enter new master password: ", "Confirm new master password: ")
		if err != nil {
			return err
		}
		defer crypto.Zeroize(newPassword)

		if err := s.RotateMasterPassword(newPassword); err != nil {
			return fmt.Errorf("failed to rotate master password: %w", err)
		}

		fmt.Println("Master password rotated successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rotateMasterCmd)
}
